package app

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"os"
	"time"

	"github.com/aq2208/gorder-settlement/configs"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
)

var ErrBadCACert = errors.New("unable to parse CA cert")

// InitGRPCConn builds a client conn for one outbound target and returns it with its cleanup.
func InitGRPCConn(_ context.Context, t configs.GRPCTarget) (*grpc.ClientConn, func(), error) {
	dialTimeout := t.Timeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	opts := []grpc.DialOption{
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  200 * time.Millisecond,
				Multiplier: 1.6,
				Jitter:     0.2,
				MaxDelay:   5 * time.Second,
			},
			MinConnectTimeout: dialTimeout,
		}),
	}

	creds, err := transportCreds(t)
	if err != nil {
		return nil, nil, err
	}
	opts = append(opts, grpc.WithTransportCredentials(creds))

	if n := t.MaxRecvBytes; n > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(n)))
	}
	if n := t.MaxSendBytes; n > 0 {
		opts = append(opts, grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(n)))
	}

	// NewClient is lazy; the first RPC establishes the connection.
	conn, err := grpc.NewClient(t.Target, opts...)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = conn.Close() }
	return conn, cleanup, nil
}

func transportCreds(t configs.GRPCTarget) (credentials.TransportCredentials, error) {
	if !t.UseTLS {
		return insecure.NewCredentials(), nil
	}
	if t.CACertPath == "" {
		return credentials.NewClientTLSFromCert(nil, t.ServerName), nil
	}
	pem, err := os.ReadFile(t.CACertPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(pem); !ok {
		return nil, ErrBadCACert
	}
	tlsCfg := &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	if sn := t.ServerName; sn != "" {
		tlsCfg.ServerName = sn
	}
	return credentials.NewTLS(tlsCfg), nil
}
