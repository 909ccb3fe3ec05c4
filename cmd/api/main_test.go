package main

import (
	"context"
	"testing"
	"time"

	appconfig "github.com/solhealth/match-booking/internal/config"
	httpmiddleware "github.com/solhealth/match-booking/internal/http/middleware"
	"github.com/solhealth/match-booking/pkg/logging"
)

func TestNeedsAWS(t *testing.T) {
	tests := []struct {
		name string
		cfg  appconfig.Config
		want bool
	}{
		{"stub email", appconfig.Config{EmailProvider: "stub"}, false},
		{"sendgrid", appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "key"}, false},
		{"ses", appconfig.Config{EmailProvider: "ses"}, true},
		{"auto prefers sendgrid", appconfig.Config{EmailProvider: "auto", SendGridAPIKey: "key", SESFromEmail: "ops@solhealth.co"}, false},
		{"auto falls back to ses", appconfig.Config{EmailProvider: "auto", SESFromEmail: "ops@solhealth.co"}, true},
		{"auto with nothing", appconfig.Config{EmailProvider: "auto"}, false},
		{"media presign", appconfig.Config{EmailProvider: "stub", MediaPresign: true}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := needsAWS(&tt.cfg); got != tt.want {
				t.Fatalf("needsAWS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadAWSSkippedWhenUnused(t *testing.T) {
	awsCfg, err := loadAWS(context.Background(), &appconfig.Config{EmailProvider: "stub"}, logging.New("error"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if awsCfg != nil {
		t.Fatal("expected no AWS config")
	}
}

func TestSweepRateLimiterStopsWithContext(t *testing.T) {
	limiter := httpmiddleware.NewRateLimiter(1, 1)
	limiter.Allow("203.0.113.7")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweepRateLimiter(ctx, limiter, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for limiter.Len() > 0 {
		select {
		case <-deadline:
			t.Fatal("idle bucket was never swept")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	sweepRateLimiter(context.Background(), nil, time.Millisecond)
}
