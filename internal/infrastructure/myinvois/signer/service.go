// Firma XAdES para documentos MyInvois versión 1.1.
// Inyecta sig:UBLDocumentSignatures con ds:Signature en ext:ExtensionContent
// y agrega el bloque cac:Signature que la referencia.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
)

// XAdESSigner firma documentos XML con un certificado RSA.
type XAdESSigner struct {
	key  *rsa.PrivateKey
	cert *x509.Certificate
	now  func() time.Time
}

// NewXAdESSigner valida el certificado. now puede ser nil (time.Now).
func NewXAdESSigner(cert tls.Certificate, now func() time.Time) (*XAdESSigner, error) {
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("myinvois: el certificado debe incluir llave privada RSA")
	}
	if len(cert.Certificate) == 0 {
		return nil, fmt.Errorf("myinvois: certificado vacío")
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		var err error
		if x509Cert, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("myinvois: parsear certificado: %w", err)
		}
	}
	if now == nil {
		now = time.Now
	}
	return &XAdESSigner{key: priv, cert: x509Cert, now: now}, nil
}

// Sign firma el XML (que debe traer ext:UBLExtensions con un ExtensionContent vacío)
// y devuelve el XML con la firma inyectada.
func (s *XAdESSigner) Sign(xmlBytes []byte) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("myinvois: XML vacío")
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("myinvois: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("myinvois: documento sin raíz")
	}
	extContent := findExtensionContent(root)
	if extContent == nil {
		return nil, fmt.Errorf("myinvois: no se encontró ext:UBLExtensions/ext:ExtensionContent para la firma")
	}

	// 1) Digest del documento sin UBLExtensions ni cac:Signature
	docDigest, err := DocumentDigest(xmlBytes)
	if err != nil {
		return nil, err
	}

	// 2) SignedProperties (SigningTime, SigningCertificate)
	signingTime := s.now().UTC().Format("2006-01-02T15:04:05Z")
	certDigest, issuerName, serial := CertDigestAndIssuerSerial(s.cert)
	propsXML := buildSignedProperties(signingTime, certDigest, issuerName, serial)
	propsDigest, err := digestOf([]byte(propsXML))
	if err != nil {
		return nil, fmt.Errorf("myinvois: canonizar SignedProperties: %w", err)
	}

	// 3) SignedInfo y SignatureValue
	signedInfoXML := buildSignedInfo(docDigest, propsDigest)
	signatureValue, err := s.signSignedInfo(signedInfoXML)
	if err != nil {
		return nil, err
	}

	// 4) Inyección
	certB64 := base64.StdEncoding.EncodeToString(s.cert.Raw)
	sigXML := buildDocumentSignatures(signedInfoXML, signatureValue, certB64, s.cert.Subject.String(), propsXML)
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(sigXML); err != nil {
		return nil, fmt.Errorf("myinvois: parsear Signature: %w", err)
	}
	extContent.AddChild(sigDoc.Root())
	insertSignatureReference(root)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("myinvois: escribir XML firmado: %w", err)
	}
	return out, nil
}

// ContentDigest digest del contenido firmado; no cambia al volver a firmar el mismo documento.
func (s *XAdESSigner) ContentDigest(xmlBytes []byte) (string, error) {
	return DocumentDigest(xmlBytes)
}

// DocumentDigest SHA-256 (base64) del documento canonizado sin UBLExtensions ni cac:Signature.
func DocumentDigest(xmlBytes []byte) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return "", fmt.Errorf("myinvois: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("myinvois: documento sin raíz")
	}
	for _, child := range root.ChildElements() {
		if child.Tag == "UBLExtensions" || child.Tag == "Signature" {
			root.RemoveChild(child)
		}
	}
	stripped, err := doc.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("myinvois: escribir XML: %w", err)
	}
	d, err := digestOf(stripped)
	if err != nil {
		return "", fmt.Errorf("myinvois: canonizar documento: %w", err)
	}
	return d, nil
}

// ── helpers privados ─────────────────────────────────────────────────────────

func (s *XAdESSigner) signSignedInfo(signedInfoXML string) (string, error) {
	canonical, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return "", fmt.Errorf("myinvois: canonizar SignedInfo: %w", err)
	}
	h := sha256.Sum256(canonical)
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, h[:])
	if err != nil {
		return "", fmt.Errorf("myinvois: firmar SignedInfo: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func digestOf(data []byte) (string, error) {
	canonical, err := canonicalizeXML(data)
	if err != nil {
		return "", err
	}
	h := sha256.Sum256(canonical)
	return base64.StdEncoding.EncodeToString(h[:]), nil
}

func findExtensionContent(root *etree.Element) *etree.Element {
	for _, child := range root.ChildElements() {
		if child.Tag != "UBLExtensions" {
			continue
		}
		for _, ext := range child.ChildElements() {
			if ext.Tag != "UBLExtension" {
				continue
			}
			for _, ec := range ext.ChildElements() {
				if ec.Tag == "ExtensionContent" {
					return ec
				}
			}
		}
	}
	return nil
}

// insertSignatureReference agrega cac:Signature antes de AccountingSupplierParty (orden UBL).
func insertSignatureReference(root *etree.Element) {
	el := etree.NewElement("cac:Signature")
	el.CreateElement("cbc:ID").SetText(SignatureRefID)
	el.CreateElement("cbc:SignatureMethod").SetText(SignatureMethodUBL)

	for _, child := range root.ChildElements() {
		if child.Tag == "AccountingSupplierParty" {
			root.InsertChildAt(child.Index(), el)
			return
		}
	}
	root.AddChild(el)
}

func buildSignedProperties(signingTime, certDigest, issuerName, serial string) string {
	var sb strings.Builder
	sb.WriteString(`<xades:SignedProperties xmlns:xades="` + NamespaceXAdES + `" xmlns:ds="` + NamespaceDS + `" Id="` + SignedPropsID + `">`)
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + signingTime + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert><xades:CertDigest>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + certDigest + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuerName) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></xades:IssuerSerial>`)
	sb.WriteString(`</xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`</xades:SignedSignatureProperties></xades:SignedProperties>`)
	return sb.String()
}

func buildSignedInfo(docDigest, propsDigest string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo xmlns:ds="` + NamespaceDS + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N11 + `"/>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA256 + `"/>`)
	sb.WriteString(`<ds:Reference Id="` + DocSignedDataRefID + `" URI="">`)
	sb.WriteString(`<ds:Transforms>`)
	sb.WriteString(`<ds:Transform Algorithm="` + TransformXPath + `"><ds:XPath>not(//ancestor-or-self::ext:UBLExtensions)</ds:XPath></ds:Transform>`)
	sb.WriteString(`<ds:Transform Algorithm="` + TransformXPath + `"><ds:XPath>not(//ancestor-or-self::cac:Signature)</ds:XPath></ds:Transform>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N11 + `"/>`)
	sb.WriteString(`</ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + docDigest + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`<ds:Reference Type="` + TypeSignedProps + `" URI="#` + SignedPropsID + `">`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA256 + `"/>`)
	sb.WriteString(`<ds:DigestValue>` + propsDigest + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func buildDocumentSignatures(signedInfoXML, signatureValue, certB64, subject, propsXML string) string {
	var sb strings.Builder
	sb.WriteString(`<sig:UBLDocumentSignatures xmlns:sig="` + NamespaceSig + `" xmlns:sac="` + NamespaceSac + `" xmlns:sbc="` + NamespaceSbc + `">`)
	sb.WriteString(`<sac:SignatureInformation>`)
	sb.WriteString(`<cbc:ID>` + SignatureInfoID + `</cbc:ID>`)
	sb.WriteString(`<sbc:ReferencedSignatureID>` + SignatureRefID + `</sbc:ReferencedSignatureID>`)
	sb.WriteString(`<ds:Signature xmlns:ds="` + NamespaceDS + `" Id="` + SignatureID + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue>` + signatureValue + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo><ds:X509Data>`)
	sb.WriteString(`<ds:X509Certificate>` + certB64 + `</ds:X509Certificate>`)
	sb.WriteString(`<ds:X509SubjectName>` + escapeXML(subject) + `</ds:X509SubjectName>`)
	sb.WriteString(`</ds:X509Data></ds:KeyInfo>`)
	sb.WriteString(`<ds:Object><xades:QualifyingProperties xmlns:xades="` + NamespaceXAdES + `" Target="#` + SignatureID + `">`)
	sb.WriteString(propsXML)
	sb.WriteString(`</xades:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	sb.WriteString(`</sac:SignatureInformation>`)
	sb.WriteString(`</sig:UBLDocumentSignatures>`)
	return sb.String()
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
