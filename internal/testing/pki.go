package testing

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.dedis.ch/mpcstats/peer"
)

// TLSConfigs creates a fresh certificate authority and one key pair per
// party, valid for localhost and 127.0.0.1. Two calls give two unrelated
// authorities.
func TLSConfigs(t *testing.T, n int) []peer.TLSConfig {
	dir := t.TempDir()
	now := time.Now()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "mpcstats test CA"},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	caPath := filepath.Join(dir, "ca.pem")
	writePEM(t, caPath, "CERTIFICATE", caDER)

	res := make([]peer.TLSConfig, n)
	for i := range res {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)

		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(int64(i + 2)),
			Subject:      pkix.Name{CommonName: fmt.Sprintf("party-%d", i)},
			DNSNames:     []string{"localhost"},
			IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
			NotBefore:    now.Add(-time.Hour),
			NotAfter:     now.Add(time.Hour),
			KeyUsage:     x509.KeyUsageDigitalSignature,
			ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
		require.NoError(t, err)

		keyDER, err := x509.MarshalECPrivateKey(key)
		require.NoError(t, err)

		res[i] = peer.TLSConfig{
			RootCAPath: caPath,
			CertPath:   filepath.Join(dir, fmt.Sprintf("party-%d.pem", i)),
			KeyPath:    filepath.Join(dir, fmt.Sprintf("party-%d.key", i)),
		}
		writePEM(t, res[i].CertPath, "CERTIFICATE", der)
		writePEM(t, res[i].KeyPath, "EC PRIVATE KEY", keyDER)
	}

	return res
}

// FreeAddresses reserves n local TCP addresses. The ports are released before
// returning so a transport can listen on them.
func FreeAddresses(t *testing.T, n int) []string {
	res := make([]string, n)
	for i := range res {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		res[i] = l.Addr().String()
		require.NoError(t, l.Close())
	}
	return res
}

func writePEM(t *testing.T, path, kind string, der []byte) {
	buf := pem.EncodeToMemory(&pem.Block{Type: kind, Bytes: der})
	require.NoError(t, os.WriteFile(path, buf, 0o600))
}
