package main

import (
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{"serve": false, "migrate": false, "refresh": false, "review": false}

	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}

	for name, found := range want {
		if !found {
			t.Fatalf("expected %q command to be registered", name)
		}
	}
}

func TestReviewRequiresPackageID(t *testing.T) {
	if err := reviewCmd.Args(reviewCmd, nil); err == nil {
		t.Fatalf("expected an error without a package id")
	}
	if err := reviewCmd.Args(reviewCmd, []string{"42"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestReviewRejectsInvalidID(t *testing.T) {
	err := reviewCmd.RunE(reviewCmd, []string{"abc"})
	if err == nil {
		t.Fatalf("expected an error for a non-numeric id")
	}
}

func TestConfigFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config")
	if flag == nil {
		t.Fatalf("expected persistent --config flag")
	}
	if flag.Shorthand != "c" {
		t.Fatalf("unexpected shorthand: %q", flag.Shorthand)
	}
}
