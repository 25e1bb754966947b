package identity

import (
	"errors"
	"testing"
)

func TestDeriveFixedVector(t *testing.T) {
	// Pinned output: the derivation names cloud resources, so it must
	// never change across releases.
	id, err := Derive(
		"/providers/Microsoft.Management/managementGroups/corp",
		"0b62a232-b8db-4380-9da6-640f7272ed8d",
		"lfo-control-plane",
		"eastus",
	)
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if id != "a3b15c453272" {
		t.Errorf("Derive() = %s, want a3b15c453272", id)
	}

	id2, err := Derive("mg-root", "sub-1", "rg-1", "westus2")
	if err != nil {
		t.Fatalf("Derive() error = %v", err)
	}
	if id2 != "1942deba131b" {
		t.Errorf("Derive() = %s, want 1942deba131b", id2)
	}
}

func TestDeriveDeterministic(t *testing.T) {
	a, err := Derive("scope", "sub", "rg", "region")
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 100; i++ {
		b, err := Derive("scope", "sub", "rg", "region")
		if err != nil {
			t.Fatal(err)
		}
		if a != b {
			t.Fatalf("Derive not deterministic: %s != %s", a, b)
		}
	}
}

func TestDeriveDistinctInputs(t *testing.T) {
	a, _ := Derive("scope", "sub", "rg", "eastus")
	b, _ := Derive("scope", "sub", "rg", "westus")
	if a == b {
		t.Errorf("different regions produced the same ID %s", a)
	}
}

func TestDeriveEmptyInput(t *testing.T) {
	_, err := Derive("scope", "", "rg", "region")
	var invalid *InvalidInputError
	if !errors.As(err, &invalid) {
		t.Fatalf("error = %v, want InvalidInputError", err)
	}
	if invalid.Field != "subscription" {
		t.Errorf("Field = %s, want subscription", invalid.Field)
	}
}

func TestResourceNames(t *testing.T) {
	id := ID("abc123def456")

	if got := id.StorageName(); got != "lfostorageabc123def456" {
		t.Errorf("StorageName = %s", got)
	}
	if got := id.TaskName("resources"); got != "resources-task-abc123def456" {
		t.Errorf("TaskName = %s", got)
	}
	if got := id.ForwarderJobName("us-east-1"); got != "lfo-forwarder-abc123def456-us-east-1" {
		t.Errorf("ForwarderJobName = %s", got)
	}
}
