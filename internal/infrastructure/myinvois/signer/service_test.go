package signer

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unsignedXML = `<Invoice xmlns="urn:oasis:names:specification:ubl:schema:xsd:Invoice-2" ` +
	`xmlns:cac="urn:oasis:names:specification:ubl:schema:xsd:CommonAggregateComponents-2" ` +
	`xmlns:cbc="urn:oasis:names:specification:ubl:schema:xsd:CommonBasicComponents-2" ` +
	`xmlns:ext="urn:oasis:names:specification:ubl:schema:xsd:CommonExtensionComponents-2">` +
	`<ext:UBLExtensions><ext:UBLExtension><ext:ExtensionURI>urn:oasis:names:specification:ubl:dsig:enveloped:xades</ext:ExtensionURI>` +
	`<ext:ExtensionContent></ext:ExtensionContent></ext:UBLExtension></ext:UBLExtensions>` +
	`<cbc:ID>INV-001</cbc:ID>` +
	`<cac:AccountingSupplierParty><cac:Party><cac:PartyLegalEntity><cbc:RegistrationName>ACME</cbc:RegistrationName></cac:PartyLegalEntity></cac:Party></cac:AccountingSupplierParty>` +
	`</Invoice>`

func testCert(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(4242),
		Subject:      pkix.Name{CommonName: "ACME Sdn Bhd", Organization: []string{"ACME"}},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func fixedClock() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }

func TestSign_InyectaFirmaYReferencia(t *testing.T) {
	s, err := NewXAdESSigner(testCert(t), fixedClock)
	require.NoError(t, err)

	out, err := s.Sign([]byte(unsignedXML))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	root := doc.Root()

	ec := findExtensionContent(root)
	require.NotNil(t, ec)
	require.Len(t, ec.ChildElements(), 1, "el ExtensionContent lleva UBLDocumentSignatures")
	assert.Equal(t, "UBLDocumentSignatures", ec.ChildElements()[0].Tag)

	var tags []string
	for _, c := range root.ChildElements() {
		tags = append(tags, c.Tag)
	}
	assert.Equal(t, []string{"UBLExtensions", "ID", "Signature", "AccountingSupplierParty"}, tags,
		"cac:Signature va antes de AccountingSupplierParty")

	str := string(out)
	assert.Contains(t, str, "2025-03-01T10:00:00Z", "SigningTime usa el reloj inyectado")
	assert.Contains(t, str, "<ds:X509SerialNumber>4242</ds:X509SerialNumber>")
}

func TestSign_FirmaVerificable(t *testing.T) {
	cert := testCert(t)
	s, err := NewXAdESSigner(cert, fixedClock)
	require.NoError(t, err)

	out, err := s.Sign([]byte(unsignedXML))
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(out))
	signedInfo := doc.FindElement("//SignedInfo")
	require.NotNil(t, signedInfo)
	refs := signedInfo.SelectElements("Reference")
	require.Len(t, refs, 2)
	docDigest := refs[0].SelectElement("DigestValue").Text()
	propsDigest := refs[1].SelectElement("DigestValue").Text()

	expectedDoc, err := DocumentDigest([]byte(unsignedXML))
	require.NoError(t, err)
	assert.Equal(t, expectedDoc, docDigest, "el digest del documento ignora UBLExtensions")

	signedDigest, err := DocumentDigest(out)
	require.NoError(t, err)
	assert.Equal(t, expectedDoc, signedDigest, "la firma no altera el contenido firmado")

	sigValue := doc.FindElement("//SignatureValue")
	require.NotNil(t, sigValue)
	raw, err := base64.StdEncoding.DecodeString(sigValue.Text())
	require.NoError(t, err)

	canonical, err := canonicalizeXML([]byte(buildSignedInfo(docDigest, propsDigest)))
	require.NoError(t, err)
	h := sha256.Sum256(canonical)
	pub := cert.PrivateKey.(*rsa.PrivateKey).Public().(*rsa.PublicKey)
	assert.NoError(t, rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], raw))
}

func TestSign_Determinista(t *testing.T) {
	s, err := NewXAdESSigner(testCert(t), fixedClock)
	require.NoError(t, err)

	a, err := s.Sign([]byte(unsignedXML))
	require.NoError(t, err)
	b, err := s.Sign([]byte(unsignedXML))
	require.NoError(t, err)
	assert.Equal(t, a, b, "misma entrada y mismo reloj dan la misma firma")
}

func TestSign_SinUBLExtensions(t *testing.T) {
	s, err := NewXAdESSigner(testCert(t), fixedClock)
	require.NoError(t, err)

	plain := strings.Replace(unsignedXML,
		`<ext:UBLExtensions><ext:UBLExtension><ext:ExtensionURI>urn:oasis:names:specification:ubl:dsig:enveloped:xades</ext:ExtensionURI><ext:ExtensionContent></ext:ExtensionContent></ext:UBLExtension></ext:UBLExtensions>`,
		"", 1)
	_, err = s.Sign([]byte(plain))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UBLExtensions")

	_, err = s.Sign(nil)
	require.Error(t, err)
}

func TestNewXAdESSigner_RequiereRSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	_, err = NewXAdESSigner(tls.Certificate{Certificate: [][]byte{{0x01}}, PrivateKey: key}, nil)
	require.Error(t, err)
}
