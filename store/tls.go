package store

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
)

// TLSFiles names the PEM files of a mutual TLS client configuration.
type TLSFiles struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

// ClientConfig loads the files into a tls.Config. All three files are required.
func (f *TLSFiles) ClientConfig() (*tls.Config, error) {
	if f.CertFile == "" {
		return nil, errors.New("TLS cert file is required when TLS is enabled")
	}
	if f.KeyFile == "" {
		return nil, errors.New("TLS key file is required when TLS is enabled")
	}
	if f.CAFile == "" {
		return nil, errors.New("TLS CA file is required when TLS is enabled")
	}

	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load client certificate: %w", err)
	}

	caData, err := os.ReadFile(f.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caData) {
		return nil, errors.New("failed to parse CA certificate")
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      caPool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}
