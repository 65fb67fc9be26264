package app

import (
	"fmt"
	"os"

	"github.com/patronhq/patron/pkg/jwtx"
)

// initKeys loads the signing key from cfg.JWTKeyFile, or generates an
// ephemeral one when no file is configured. Ephemeral keys invalidate every
// outstanding token on restart, which is acceptable in dev only.
func initKeys(cfg Config) (jwtx.Signer, *jwtx.KeySet, jwtx.Verifier, error) {
	var (
		signer jwtx.Signer
		err    error
	)

	if cfg.JWTKeyFile != "" {
		pemKey, readErr := os.ReadFile(cfg.JWTKeyFile)
		if readErr != nil {
			return nil, nil, nil, fmt.Errorf("read jwt key file: %w", readErr)
		}
		signer, err = jwtx.NewSignerEdDSA("primary", pemKey)
	} else {
		signer, err = jwtx.GenerateSignerEdDSA("ephemeral")
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init signing key: %w", err)
	}

	keys := jwtx.NewKeySet()
	if err := keys.AddSigner(signer); err != nil {
		return nil, nil, nil, fmt.Errorf("register signing key: %w", err)
	}

	verifier := jwtx.NewVerifierEdDSA(keys, cfg.Issuer)

	return signer, keys, verifier, nil
}
