package main

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	configpkg "autobattler/arbiter/internal/config"
	arbitergrpc "autobattler/arbiter/internal/grpc"
	"autobattler/arbiter/internal/logging"
)

// transportMode names how the gRPC listener is secured, for the startup log.
func transportMode(cfg *configpkg.Config) string {
	switch {
	case cfg.GRPCClientCAPath != "":
		return "mtls"
	case cfg.TLSCertPath != "":
		return "tls"
	default:
		return "plaintext"
	}
}

// configureGRPCSecurity turns the TLS settings into transport credentials and
// chains the trace logging interceptors ahead of the optional shared secret.
func configureGRPCSecurity(cfg *configpkg.Config, logger *logging.Logger) ([]grpc.ServerOption, error) {
	if cfg == nil {
		return nil, errors.New("grpc config required")
	}
	if logger == nil {
		logger = logging.L()
	}

	var opts []grpc.ServerOption
	if mode := transportMode(cfg); mode != "plaintext" {
		tlsConfig, err := serverTLSConfig(cfg.TLSCertPath, cfg.TLSKeyPath, cfg.GRPCClientCAPath)
		if err != nil {
			return nil, err
		}
		opts = append(opts, grpc.Creds(credentials.NewTLS(tlsConfig)))
		logger.Info("grpc transport secured", logging.String("mode", mode))
	}

	unary := []grpc.UnaryServerInterceptor{arbitergrpc.UnaryLogging(logger)}
	stream := []grpc.StreamServerInterceptor{arbitergrpc.StreamLogging(logger)}
	if cfg.GRPCSharedSecret != "" {
		unary = append(unary, arbitergrpc.UnarySharedSecret(cfg.GRPCSharedSecret))
		stream = append(stream, arbitergrpc.StreamSharedSecret(cfg.GRPCSharedSecret))
		logger.Info("grpc shared secret required", logging.String("metadata_key", arbitergrpc.SharedSecretMetadataKey))
	}
	return append(opts, grpc.ChainUnaryInterceptor(unary...), grpc.ChainStreamInterceptor(stream...)), nil
}

// serverTLSConfig loads the server keypair. A non-empty caPath additionally
// pins client certificates to that bundle.
func serverTLSConfig(certPath, keyPath, caPath string) (*tls.Config, error) {
	keypair, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("load server keypair: %w", err)
	}
	tlsConfig := &tls.Config{Certificates: []tls.Certificate{keypair}, MinVersion: tls.VersionTLS12}
	if caPath == "" {
		return tlsConfig, nil
	}
	bundle, err := os.ReadFile(caPath)
	if err != nil {
		return nil, fmt.Errorf("read client ca: %w", err)
	}
	clients := x509.NewCertPool()
	if !clients.AppendCertsFromPEM(bundle) {
		return nil, fmt.Errorf("client ca %s holds no PEM certificates", caPath)
	}
	tlsConfig.ClientCAs = clients
	tlsConfig.ClientAuth = tls.RequireAndVerifyClientCert
	return tlsConfig, nil
}
