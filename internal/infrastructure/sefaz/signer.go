package sefaz

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// Algoritmos XMLDSig exigidos por el leiaute NF-e 4.00.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgRSASHA1         = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1            = "http://www.w3.org/2000/09/xmldsig#sha1"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)

// Signer firma <infNFe> con firma XMLDSig envelopada dentro de <NFe>.
type Signer struct {
	cert tls.Certificate
}

// NewSigner valida que el certificado traiga llave RSA.
func NewSigner(cert tls.Certificate) (*Signer, error) {
	if !HasKey(cert) {
		return nil, fmt.Errorf("sefaz: certificado sin llave privada")
	}
	if _, ok := cert.PrivateKey.(*rsa.PrivateKey); !ok {
		return nil, fmt.Errorf("sefaz: el certificado debe incluir llave privada RSA")
	}
	return &Signer{cert: cert}, nil
}

// Sign agrega <Signature> como último hijo de nfe, con Reference a infNFe/@Id.
func (s *Signer) Sign(nfe *etree.Element) error {
	inf := nfe.SelectElement("infNFe")
	if inf == nil {
		return fmt.Errorf("sefaz: <NFe> sin <infNFe>")
	}
	id := inf.SelectAttrValue("Id", "")
	if id == "" {
		return fmt.Errorf("sefaz: <infNFe> sin atributo Id")
	}

	// 1) Digest de infNFe canonicalizado (hereda el xmlns de NFe).
	infCopy := inf.Copy()
	infCopy.CreateAttr("xmlns", nfe.SelectAttrValue("xmlns", ""))
	canonicalInf, err := canonicalizeElement(infCopy)
	if err != nil {
		return fmt.Errorf("sefaz: canonicalizar infNFe: %w", err)
	}
	digest := sha1.Sum(canonicalInf)

	// 2) SignedInfo y su firma RSA-SHA1.
	signedInfo := buildSignedInfo("#"+id, base64.StdEncoding.EncodeToString(digest[:]))
	canonicalSI, err := canonicalizeElement(signedInfo)
	if err != nil {
		return fmt.Errorf("sefaz: canonicalizar SignedInfo: %w", err)
	}
	h := sha1.Sum(canonicalSI)
	priv := s.cert.PrivateKey.(*rsa.PrivateKey)
	sig, err := rsa.SignPKCS1v15(nil, priv, crypto.SHA1, h[:])
	if err != nil {
		return fmt.Errorf("sefaz: firmar SignedInfo: %w", err)
	}

	leaf := s.cert.Leaf
	if leaf == nil {
		if leaf, err = x509.ParseCertificate(s.cert.Certificate[0]); err != nil {
			return fmt.Errorf("sefaz: parsear certificado: %w", err)
		}
	}

	// 3) Signature completa (SignedInfo + SignatureValue + KeyInfo).
	signature := etree.NewElement("Signature")
	signature.CreateAttr("xmlns", NamespaceDS)
	signedInfo.RemoveAttr("xmlns")
	signature.AddChild(signedInfo)
	signature.CreateElement("SignatureValue").SetText(base64.StdEncoding.EncodeToString(sig))
	signature.CreateElement("KeyInfo").CreateElement("X509Data").CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(leaf.Raw))
	nfe.AddChild(signature)
	return nil
}

func buildSignedInfo(uri, digestB64 string) *etree.Element {
	si := etree.NewElement("SignedInfo")
	si.CreateAttr("xmlns", NamespaceDS)
	si.CreateElement("CanonicalizationMethod").CreateAttr("Algorithm", AlgC14N)
	si.CreateElement("SignatureMethod").CreateAttr("Algorithm", AlgRSASHA1)
	ref := si.CreateElement("Reference")
	ref.CreateAttr("URI", uri)
	transforms := ref.CreateElement("Transforms")
	transforms.CreateElement("Transform").CreateAttr("Algorithm", TransformEnveloped)
	transforms.CreateElement("Transform").CreateAttr("Algorithm", AlgC14N)
	ref.CreateElement("DigestMethod").CreateAttr("Algorithm", AlgSHA1)
	ref.CreateElement("DigestValue").SetText(digestB64)
	return si
}

func canonicalizeElement(el *etree.Element) ([]byte, error) {
	doc := etree.NewDocument()
	doc.SetRoot(el.Copy())
	raw, err := doc.WriteToBytes()
	if err != nil {
		return nil, err
	}
	return canonicalize(raw)
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}
