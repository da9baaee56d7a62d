package main

import (
	"log"
	"net/http"

	"github.com/peterson-htn252/HTN252/internal/auth"
	"github.com/peterson-htn252/HTN252/internal/config"
	"github.com/peterson-htn252/HTN252/internal/credentials"
	"github.com/peterson-htn252/HTN252/internal/db"
	"github.com/peterson-htn252/HTN252/internal/face"
	"github.com/peterson-htn252/HTN252/internal/httpapi"
	"github.com/peterson-htn252/HTN252/internal/identity"
	"github.com/peterson-htn252/HTN252/internal/ledger"
	"github.com/peterson-htn252/HTN252/internal/settlement"
	"github.com/peterson-htn252/HTN252/internal/store"
)

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer database.Close()

	if err := db.RunMigrations(database, "migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	rates, err := ledger.NewRates(cfg.Ledger.USDRate)
	if err != nil {
		log.Fatalf("Invalid ledger rate config: %v", err)
	}

	// The service stays up without a ledger connection; settlement routes
	// answer 503 until the network is reachable.
	var gw ledger.Gateway
	fabric, err := ledger.Connect(cfg.Ledger)
	if err != nil {
		log.Printf("Warning: failed to connect to ledger network: %v", err)
	} else {
		defer fabric.Close()
		gw = fabric
	}

	st := store.New(database)
	engine := settlement.NewEngine(st, gw, rates, cfg.OffRampAddress, cfg.OffRampDestTag)
	authenticator := auth.New(cfg.JWTSecret, cfg.TokenTTL)
	challenger := ledger.NewChallenger(cfg.AppSecret)
	issuer := credentials.NewIssuer(cfg.AppSecret, st)

	var faces face.Provider
	switch cfg.FaceModelURL {
	case "":
	case "stub":
		faces = face.StubProvider{}
	default:
		faces = face.NewHTTPProvider(cfg.FaceModelURL)
	}

	idClient := identity.NewClient(cfg.IdentityAPIKey, cfg.IdentityTemplateID, cfg.IdentityEnv)

	svc := httpapi.NewService(st, engine, gw, rates, authenticator, challenger, faces, idClient, issuer, cfg.Ledger.Network)

	log.Printf("Aid ledger API running on :%s (network %s)", cfg.Port, cfg.Ledger.Network)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, svc.Router()))
}
