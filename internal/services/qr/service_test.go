package qr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIssueAndVerifyLabel(t *testing.T) {
	svc := NewService("label-secret")

	label := svc.IssueLabel("V-abc123")
	assert.Equal(t, "V-abc123", label.Code)
	assert.NotEmpty(t, label.Signature)
	assert.True(t, svc.VerifyLabel(label))
}

func TestVerifyLabel_Tampered(t *testing.T) {
	svc := NewService("label-secret")
	label := svc.IssueLabel("V-abc123")

	forged := label
	forged.Code = "V-other"
	assert.False(t, svc.VerifyLabel(forged))

	broken := label
	broken.Signature = "bm90LWEtc2lnbmF0dXJl"
	assert.False(t, svc.VerifyLabel(broken))
}

func TestVerifyLabel_DifferentSecret(t *testing.T) {
	label := NewService("secret-a").IssueLabel("V-abc123")
	assert.False(t, NewService("secret-b").VerifyLabel(label))
}
