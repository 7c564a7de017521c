// Command fiscalctl herramientas de operación: migraciones, emisión manual y
// conciliación del flujo de caja.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
