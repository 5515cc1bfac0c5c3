package pkpass

import (
	"crypto"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.mozilla.org/pkcs7"
)

// Certificate file names inside CertSource.Dir.
const (
	WWDRFile      = "wwdr.pem"
	SignerFile    = "signerCert.pem"
	SignerKeyFile = "signerKey.pem"
)

// CertSource locates signing material. A base64 value wins over the file of
// the same role in Dir.
type CertSource struct {
	Dir             string
	WWDRBase64      string
	SignerBase64    string
	SignerKeyBase64 string
}

// PKCS7Signer signs manifests with the pass type certificate, embedding the
// WWDR intermediate.
type PKCS7Signer struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
	wwdr *x509.Certificate
}

// NewPKCS7Signer creates a signer from parsed material.
func NewPKCS7Signer(cert *x509.Certificate, key crypto.PrivateKey, wwdr *x509.Certificate) *PKCS7Signer {
	return &PKCS7Signer{cert: cert, key: key, wwdr: wwdr}
}

// LoadSigner reads and parses the three PEM inputs once.
func LoadSigner(src CertSource) (*PKCS7Signer, error) {
	wwdrPEM, err := src.read(src.WWDRBase64, WWDRFile)
	if err != nil {
		return nil, err
	}
	certPEM, err := src.read(src.SignerBase64, SignerFile)
	if err != nil {
		return nil, err
	}
	keyPEM, err := src.read(src.SignerKeyBase64, SignerKeyFile)
	if err != nil {
		return nil, err
	}

	wwdr, err := parseCertificate(wwdrPEM)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", WWDRFile, err)
	}
	cert, err := parseCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", SignerFile, err)
	}
	key, err := ParsePrivateKey(keyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", SignerKeyFile, err)
	}

	return NewPKCS7Signer(cert, key, wwdr), nil
}

// Sign returns a DER encoded detached signature.
func (s *PKCS7Signer) Sign(manifest []byte) ([]byte, error) {
	sd, err := pkcs7.NewSignedData(manifest)
	if err != nil {
		return nil, err
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	var parents []*x509.Certificate
	if s.wwdr != nil {
		parents = append(parents, s.wwdr)
	}
	if err := sd.AddSignerChain(s.cert, s.key, parents, pkcs7.SignerInfoConfig{}); err != nil {
		return nil, fmt.Errorf("add signer: %w", err)
	}

	sd.Detach()
	return sd.Finish()
}

func (src CertSource) read(b64, name string) ([]byte, error) {
	if b64 != "" {
		data, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, fmt.Errorf("decode %s from environment: %w", name, err)
		}
		return data, nil
	}
	data, err := os.ReadFile(filepath.Join(src.Dir, name)) //nolint:gosec // configured directory
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return data, nil
}

func parseCertificate(data []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	return x509.ParseCertificate(block.Bytes)
}

// ParsePrivateKey accepts PKCS#8, PKCS#1 and SEC 1 PEM keys.
func ParsePrivateKey(data []byte) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("no PEM block")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key format")
}
