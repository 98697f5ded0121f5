package hash

import "testing"

func TestHashCodeRoundTrip(t *testing.T) {
	hashed, err := HashCode("483920")
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	if hashed == "483920" {
		t.Fatal("code stored in plaintext")
	}
	if !CheckCode("483920", hashed) {
		t.Error("correct code rejected")
	}
	if CheckCode("000000", hashed) {
		t.Error("wrong code accepted")
	}
}

func TestHashCodeSalted(t *testing.T) {
	first, err := HashCode("483920")
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	second, err := HashCode("483920")
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	if first == second {
		t.Error("identical hashes for the same code, salt missing")
	}
}
