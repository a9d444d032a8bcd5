// Carga de certificado desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// El password puede ser vacío si el archivo no está protegido.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	priv, cert, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	return tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}, nil
}

// LoadFromPEM carga certificado y llave desde archivos PEM; keyPath vacío = archivo combinado.
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	return cert, nil
}

// Load elige el cargador según la extensión: .p12/.pfx o PEM.
func Load(certPath, keyPath, password string) (tls.Certificate, error) {
	if certPath == "" {
		return tls.Certificate{}, fmt.Errorf("ruta de certificado vacía")
	}
	switch strings.ToLower(filepath.Ext(certPath)) {
	case ".p12", ".pfx":
		return LoadFromP12(certPath, password)
	default:
		return LoadFromPEM(certPath, keyPath)
	}
}

// CertDigestAndIssuerSerial digest SHA-256 del certificado (base64), emisor y serial decimal para XAdES.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64, issuerName, serial string) {
	h := sha256.Sum256(cert.Raw)
	return base64.StdEncoding.EncodeToString(h[:]), cert.Issuer.String(), cert.SerialNumber.String()
}
