package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coinpay/backend/internal/auth"
	"github.com/coinpay/backend/internal/config"
	"go.uber.org/zap"
)

// opstoken mints an operator JWT for the review API and the event stream.
func main() {
	operator := flag.String("operator", "", "operator id (required)")
	role := flag.String("role", auth.RoleOperator, "operator role")
	ttl := flag.Duration("ttl", 0, "token lifetime (defaults to JWT_EXPIRATION_HOURS)")
	flag.Parse()

	log, _ := zap.NewProduction()
	defer log.Sync()

	if *operator == "" {
		fmt.Fprintln(os.Stderr, "usage: opstoken -operator <id> [-role operator|admin] [-ttl 12h]")
		os.Exit(2)
	}

	cfg := config.Load()
	cfg.Validate(log)

	expiration := cfg.JWTExpiration
	if *ttl > 0 {
		expiration = *ttl
	}

	token, err := auth.GenerateJWT(cfg.JWTSecret, *operator, *role, expiration)
	if err != nil {
		log.Fatal("failed to sign token", zap.Error(err))
	}

	log.Info("operator token issued",
		zap.String("operator_id", *operator),
		zap.String("role", *role),
		zap.Time("expires_at", time.Now().Add(expiration)),
	)
	fmt.Println(token)
}
