// Package credentials issues and verifies verifiable credentials as
// HS256-signed JWTs, with revocation checked against the store.
package credentials

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/peterson-htn252/HTN252/internal/models"
)

var (
	ErrMalformed        = errors.New("malformed credential")
	ErrInvalidSignature = errors.New("invalid credential signature")
	ErrExpired          = errors.New("credential expired")
	ErrNotYetValid      = errors.New("credential not yet valid")
	ErrRevoked          = errors.New("credential revoked")
	ErrInvalidRequest   = errors.New("issuer_did and role are required")
)

const defaultTTLMinutes = 60

// Store persists issued credentials and their revocations.
type Store interface {
	CreateCredential(ctx context.Context, c *models.IssuedCredential) error
	RevokeCredential(ctx context.Context, credentialID string) error
	IsCredentialRevoked(ctx context.Context, credentialID string) (bool, error)
}

// Subject is the claim block naming who a credential is about.
type Subject struct {
	Wallet    string `json:"wallet,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Role      string `json:"role"`
	ProgramID string `json:"program_id,omitempty"`
}

// Document is the W3C-shaped body embedded in the token.
type Document struct {
	Context           []string `json:"@context"`
	Type              []string `json:"type"`
	CredentialSubject Subject  `json:"credentialSubject"`
}

// Claims is the full JWT payload of an issued credential.
type Claims struct {
	VC Document `json:"vc"`
	jwt.RegisteredClaims
}

// Issued is the response to one issuance.
type Issued struct {
	CredentialID string `json:"credential_id"`
	JWT          string `json:"jwt"`
	ExpiresAt    int64  `json:"expires_at"`
}

// Issuer signs, verifies, and revokes credentials with one shared secret.
type Issuer struct {
	secret []byte
	store  Store
	now    func() time.Time
}

func NewIssuer(secret string, s Store) *Issuer {
	return &Issuer{secret: []byte(secret), store: s, now: time.Now}
}

func (i *Issuer) Issue(ctx context.Context, req models.CredentialIssueRequest) (*Issued, error) {
	if req.IssuerDID == "" || req.Role == "" {
		return nil, ErrInvalidRequest
	}
	ttl := req.TTLMinutes
	if ttl <= 0 {
		ttl = defaultTTLMinutes
	}

	now := i.now()
	expires := now.Add(time.Duration(ttl) * time.Minute)
	credentialID := "urn:vc:" + uuid.NewString()

	subject := req.SubjectWallet
	if subject == "" {
		subject = req.SubjectID
	}
	if subject == "" {
		subject = "subject"
	}

	claims := &Claims{
		VC: Document{
			Context: []string{"https://www.w3.org/2018/credentials/v1"},
			Type:    []string{"VerifiableCredential", req.Role + "Credential"},
			CredentialSubject: Subject{
				Wallet:    req.SubjectWallet,
				SubjectID: req.SubjectID,
				Role:      req.Role,
				ProgramID: req.ProgramID,
			},
		},
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        credentialID,
			Issuer:    req.IssuerDID,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = req.IssuerDID + "#keys-1"
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, err
	}

	record := &models.IssuedCredential{
		CredentialID: credentialID,
		IssuerDID:    req.IssuerDID,
		Role:         req.Role,
		JWT:          signed,
		Status:       "active",
		ExpiresAt:    expires,
	}
	if err := i.store.CreateCredential(ctx, record); err != nil {
		return nil, err
	}

	return &Issued{CredentialID: credentialID, JWT: signed, ExpiresAt: expires.Unix()}, nil
}

// Verify checks the signature and validity window, then the revocation list.
func (i *Issuer) Verify(ctx context.Context, token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenMalformed):
		return nil, ErrMalformed
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrNotYetValid
	default:
		return nil, ErrInvalidSignature
	}

	revoked, err := i.store.IsCredentialRevoked(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (i *Issuer) Revoke(ctx context.Context, credentialID string) error {
	return i.store.RevokeCredential(ctx, credentialID)
}
