package auth

import "testing"

func TestHashAndVerifyMergeToken(t *testing.T) {
	t.Parallel()

	hash, err := HashMergeToken("let-me-merge")
	if err != nil {
		t.Fatalf("hash merge token: %v", err)
	}
	if hash == "" {
		t.Fatalf("expected non-empty hash")
	}
	if !VerifyMergeToken("let-me-merge", hash) {
		t.Fatalf("expected token verification to succeed")
	}
	if VerifyMergeToken("wrong-token", hash) {
		t.Fatalf("did not expect wrong token to verify")
	}
}

func TestVerifyMergeToken_EmptyHashNeverVerifies(t *testing.T) {
	t.Parallel()

	if VerifyMergeToken("anything", "") {
		t.Fatalf("empty hash must not verify")
	}
	if VerifyMergeToken("", "$2a$12$notarealhash") {
		t.Fatalf("empty token must not verify")
	}
}
