// Carga del certificado A1 (PKCS#12) usado para mTLS con la SEFAZ y para firmar la NF-e.

package sefaz

import (
	"crypto/tls"
	"fmt"
	"os"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// Si path está vacío retorna cert vacío y err nil (sin mTLS ni firma).
func LoadFromP12(path, password string) (tls.Certificate, error) {
	if path == "" {
		return tls.Certificate{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	return DecodeP12(data, password)
}

// DecodeP12 decodifica un certificado A1 en memoria.
func DecodeP12(data []byte, password string) (tls.Certificate, error) {
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	// pkcs12.Decode devuelve un solo certificado; para la SEFAZ basta el certificado hoja.
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// HasKey indica si el certificado trae llave privada utilizable.
func HasKey(cert tls.Certificate) bool {
	return len(cert.Certificate) > 0 && cert.PrivateKey != nil
}
