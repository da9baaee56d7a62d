package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/peterson-htn252/HTN252/internal/models"
)

type fakeStore struct {
	created []*models.IssuedCredential
	revoked map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{revoked: make(map[string]bool)}
}

func (f *fakeStore) CreateCredential(ctx context.Context, c *models.IssuedCredential) error {
	f.created = append(f.created, c)
	return nil
}

func (f *fakeStore) RevokeCredential(ctx context.Context, credentialID string) error {
	f.revoked[credentialID] = true
	return nil
}

func (f *fakeStore) IsCredentialRevoked(ctx context.Context, credentialID string) (bool, error) {
	return f.revoked[credentialID], nil
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	fs := newFakeStore()
	issuer := NewIssuer("vc-secret", fs)

	issued, err := issuer.Issue(context.Background(), models.CredentialIssueRequest{
		IssuerDID:     "did:web:relief.example",
		SubjectWallet: "w0abc",
		Role:          "Recipient",
		ProgramID:     "program-3",
		TTLMinutes:    30,
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.JWT)
	require.Contains(t, issued.CredentialID, "urn:vc:")

	claims, err := issuer.Verify(context.Background(), issued.JWT)
	require.NoError(t, err)
	require.Equal(t, issued.CredentialID, claims.ID)
	require.Equal(t, "did:web:relief.example", claims.Issuer)
	require.Equal(t, "w0abc", claims.VC.CredentialSubject.Wallet)
	require.Equal(t, "program-3", claims.VC.CredentialSubject.ProgramID)
	require.Contains(t, claims.VC.Type, "RecipientCredential")

	require.Len(t, fs.created, 1)
	require.Equal(t, "active", fs.created[0].Status)
}

func TestVerifyRejectsRevoked(t *testing.T) {
	fs := newFakeStore()
	issuer := NewIssuer("vc-secret", fs)

	issued, err := issuer.Issue(context.Background(), models.CredentialIssueRequest{
		IssuerDID: "did:web:relief.example",
		Role:      "Store",
	})
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(context.Background(), issued.CredentialID))

	_, err = issuer.Verify(context.Background(), issued.JWT)
	require.ErrorIs(t, err, ErrRevoked)
}

func TestVerifyRejectsExpired(t *testing.T) {
	fs := newFakeStore()
	issuer := NewIssuer("vc-secret", fs)

	issued, err := issuer.Issue(context.Background(), models.CredentialIssueRequest{
		IssuerDID:  "did:web:relief.example",
		Role:       "Recipient",
		TTLMinutes: 5,
	})
	require.NoError(t, err)

	issuer.now = func() time.Time { return time.Now().Add(10 * time.Minute) }
	_, err = issuer.Verify(context.Background(), issued.JWT)
	require.ErrorIs(t, err, ErrExpired)
}

func TestVerifyRejectsTamperedAndMalformed(t *testing.T) {
	fs := newFakeStore()
	issuer := NewIssuer("vc-secret", fs)

	issued, err := issuer.Issue(context.Background(), models.CredentialIssueRequest{
		IssuerDID: "did:web:relief.example",
		Role:      "Recipient",
	})
	require.NoError(t, err)

	_, err = NewIssuer("other-secret", fs).Verify(context.Background(), issued.JWT)
	require.ErrorIs(t, err, ErrInvalidSignature)

	_, err = issuer.Verify(context.Background(), "not.a.credential")
	require.ErrorIs(t, err, ErrMalformed)
}

func TestIssueRequiresIssuerAndRole(t *testing.T) {
	issuer := NewIssuer("vc-secret", newFakeStore())

	_, err := issuer.Issue(context.Background(), models.CredentialIssueRequest{Role: "Recipient"})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = issuer.Issue(context.Background(), models.CredentialIssueRequest{IssuerDID: "did:web:x"})
	require.ErrorIs(t, err, ErrInvalidRequest)
}
