package config

import "testing"

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode": "disable",
			"master": map[string]any{
				"userName": "user",
			},
		},
		"pubsub": map[string]any{
			"topicId": "",
		},
		"jwt": map[string]any{
			"accessSecret":      "",
			"refreshExpiresIn":  "7d",
			"refreshCookieName": "refresh_token",
		},
		"stripe": map[string]any{
			"secretKey":         "",
			"maxNetworkRetries": 2,
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_MASTER_USERNAME", want: "postgres.master.userName"},
		{envKey: "PUBSUB_TOPICID", want: "pubsub.topicId"},
		{envKey: "JWT_ACCESS_SECRET", want: "jwt.accessSecret"},
		{envKey: "JWT_REFRESH_EXPIRES_IN", want: "jwt.refreshExpiresIn"},
		{envKey: "JWT_REFRESH_COOKIE_NAME", want: "jwt.refreshCookieName"},
		{envKey: "STRIPE_SECRET_KEY", want: "stripe.secretKey"},
		{envKey: "STRIPE_MAX_NETWORK_RETRIES", want: "stripe.maxNetworkRetries"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}
