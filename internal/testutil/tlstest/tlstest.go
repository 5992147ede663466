// Package tlstest issues throwaway certificates for TLS host tests.
package tlstest

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// HostFiles holds a signed host certificate on disk and a client config that
// trusts only its signing CA.
type HostFiles struct {
	CertFile string
	KeyFile  string
	Client   *tls.Config
}

// IssueHost creates a one-off CA and signs a server certificate for ip with
// it. Files land in t.TempDir().
func IssueHost(t testing.TB, ip net.IP) HostFiles {
	t.Helper()
	dir := t.TempDir()
	now := time.Now()

	caKey := newKey(t)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "framelink-test-ca"},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("tlstest: ca cert: %v", err)
	}
	ca, err := x509.ParseCertificate(caDER)
	if err != nil {
		t.Fatalf("tlstest: parse ca: %v", err)
	}

	hostKey := newKey(t)
	hostTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: ip.String()},
		NotBefore:    now.Add(-time.Minute),
		NotAfter:     now.Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{ip},
	}
	hostDER, err := x509.CreateCertificate(rand.Reader, hostTmpl, ca, &hostKey.PublicKey, caKey)
	if err != nil {
		t.Fatalf("tlstest: host cert: %v", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(hostKey)
	if err != nil {
		t.Fatalf("tlstest: marshal key: %v", err)
	}

	files := HostFiles{
		CertFile: filepath.Join(dir, "host.crt"),
		KeyFile:  filepath.Join(dir, "host.key"),
	}
	writePEM(t, files.CertFile, "CERTIFICATE", hostDER)
	writePEM(t, files.KeyFile, "EC PRIVATE KEY", keyDER)

	pool := x509.NewCertPool()
	pool.AddCert(ca)
	files.Client = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return files
}

func newKey(t testing.TB) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("tlstest: generate key: %v", err)
	}
	return key
}

func writePEM(t testing.TB, path, blockType string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("tlstest: write %s: %v", path, err)
	}
}
