package cmd

import (
	"errors"
	"fmt"
	"os"

	aireg_protocol "aireg-cli/solana"
	"aireg-cli/storage"

	"github.com/gagliardetto/solana-go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	rpcURLKey         = "rpc_url"
	clusterKey        = "cluster"
	commitmentKey     = "commitment"
	keypairKey        = "keypair"
	profileKey        = "profile"
	storageDirKey     = "storage_dir"
	rpsKey            = "rps"
	maxAttemptsKey    = "max_attempts"
	confirmTimeoutKey = "confirm_timeout"
	heliusAPIKeyKey   = "helius_api_key"
	verboseKey        = "verbose"
	jsonOutputKey     = "json"
)

var errNoKeypair = errors.New("no keypair configured: pass --keypair or --profile, or run `aireg wallet new`")

func mustBindFlag(key, env string, flag *pflag.Flag) {
	if flag == nil {
		panic(fmt.Sprintf("flag for key %s not found", key))
	}
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
	if env != "" {
		if err := viper.BindEnv(key, env); err != nil {
			panic(err)
		}
	}
}

// heliusEndpoint returns the Helius RPC URL for cluster, or "" when Helius
// does not serve it.
func heliusEndpoint(cluster aireg_protocol.Cluster, apiKey string) string {
	switch cluster {
	case aireg_protocol.ClusterDevnet:
		return fmt.Sprintf("https://devnet.helius-rpc.com/?api-key=%s", apiKey)
	case aireg_protocol.ClusterMainnet:
		return fmt.Sprintf("https://mainnet.helius-rpc.com/?api-key=%s", apiKey)
	}
	return ""
}

// resolveConfig builds the client configuration from flags, environment and .env.
// An explicit rpc-url wins over the Helius endpoint, which wins over the
// cluster's public endpoint.
func resolveConfig(v *viper.Viper, log *zap.Logger) (aireg_protocol.Config, error) {
	cfg := aireg_protocol.DefaultConfig()

	cluster, err := aireg_protocol.ParseCluster(v.GetString(clusterKey))
	if err != nil {
		return cfg, err
	}
	commitment, err := aireg_protocol.ParseCommitment(v.GetString(commitmentKey))
	if err != nil {
		return cfg, err
	}
	cfg.Cluster = cluster
	cfg.Commitment = commitment

	cfg.RPCURL = v.GetString(rpcURLKey)
	if cfg.RPCURL == "" {
		if apiKey := v.GetString(heliusAPIKeyKey); apiKey != "" {
			cfg.RPCURL = heliusEndpoint(cluster, apiKey)
			if cfg.RPCURL != "" {
				log.Debug("using helius rpc endpoint", zap.String("cluster", string(cluster)))
			}
		}
	}
	cfg.RequestsPerSecond = v.GetFloat64(rpsKey)
	if n := v.GetInt(maxAttemptsKey); n != 0 {
		cfg.Retry.MaxAttempts = n
	}
	cfg.ConfirmTimeout = v.GetDuration(confirmTimeoutKey)
	cfg.Logger = log
	return cfg, cfg.Validate()
}

// loadSigner resolves the signing keypair: an explicit keypair file, then a
// named profile, then the default wallet file. It returns errNoKeypair when
// none is available.
func loadSigner(v *viper.Viper) (solana.PrivateKey, error) {
	if path := v.GetString(keypairKey); path != "" {
		wallet, err := aireg_protocol.LoadWallet(path)
		if err != nil {
			return nil, err
		}
		return wallet.PrivateKey, nil
	}
	if name := v.GetString(profileKey); name != "" {
		db, err := storage.Connect(v.GetString(storageDirKey))
		if err != nil {
			return nil, err
		}
		defer db.Close()
		profile, err := db.GetWallet(name)
		if err != nil {
			return nil, err
		}
		return profile.PrivateKey, nil
	}
	path, err := aireg_protocol.DefaultWalletPath()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errNoKeypair
	}
	wallet, err := aireg_protocol.LoadWallet(path)
	if err != nil {
		return nil, err
	}
	return wallet.PrivateKey, nil
}

// newClient creates a registry client. Without requireSigner a missing
// keypair yields a read-only client.
func newClient(v *viper.Viper, log *zap.Logger, requireSigner bool, opts ...aireg_protocol.ClientOption) (*aireg_protocol.Client, error) {
	cfg, err := resolveConfig(v, log)
	if err != nil {
		return nil, err
	}
	signer, err := loadSigner(v)
	if err != nil && (requireSigner || !errors.Is(err, errNoKeypair)) {
		return nil, err
	}
	return aireg_protocol.NewClient(cfg, signer, opts...)
}

// newLogger returns a development logger when verbose, otherwise a
// production logger that only reports warnings and errors.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
