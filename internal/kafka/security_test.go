package kafka

import (
	"testing"

	"github.com/IBM/sarama"
)

func TestSecurityConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  SecurityConfig
		wantErr bool
	}{
		{"empty is plaintext", SecurityConfig{}, false},
		{"plaintext", SecurityConfig{Protocol: "PLAINTEXT"}, false},
		{"ssl", SecurityConfig{Protocol: "SSL"}, false},
		{"sasl plain", SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "PLAIN", SASLUsername: "u", SASLPassword: "p"}, false},
		{"scram without password", SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u"}, true},
		{"iam without region", SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM"}, true},
		{"iam", SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM", AWSRegion: "eu-west-1"}, false},
		{"unknown mechanism", SecurityConfig{Protocol: "SASL_PLAINTEXT", SASLMechanism: "GSSAPI"}, true},
		{"unknown protocol", SecurityConfig{Protocol: "QUIC"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSecurityConfig_Apply(t *testing.T) {
	tests := []struct {
		name      string
		config    SecurityConfig
		sasl      bool
		tls       bool
		mechanism sarama.SASLMechanism
	}{
		{
			name:   "plaintext",
			config: SecurityConfig{Protocol: "PLAINTEXT"},
		},
		{
			name:   "ssl",
			config: SecurityConfig{Protocol: "SSL"},
			tls:    true,
		},
		{
			name:      "scram sha256 over plaintext",
			config:    SecurityConfig{Protocol: "SASL_PLAINTEXT", SASLMechanism: "SCRAM-SHA-256", SASLUsername: "u", SASLPassword: "p"},
			sasl:      true,
			mechanism: sarama.SASLTypeSCRAMSHA256,
		},
		{
			name:      "scram sha512 over tls",
			config:    SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-512", SASLUsername: "u", SASLPassword: "p"},
			sasl:      true,
			tls:       true,
			mechanism: sarama.SASLTypeSCRAMSHA512,
		},
		{
			name:      "msk iam",
			config:    SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM", AWSRegion: "us-west-2"},
			sasl:      true,
			tls:       true,
			mechanism: sarama.SASLTypeOAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := sarama.NewConfig()
			if err := tt.config.apply(config); err != nil {
				t.Fatalf("apply() error = %v", err)
			}
			if config.Net.SASL.Enable != tt.sasl {
				t.Errorf("SASL.Enable = %v, want %v", config.Net.SASL.Enable, tt.sasl)
			}
			if config.Net.TLS.Enable != tt.tls {
				t.Errorf("TLS.Enable = %v, want %v", config.Net.TLS.Enable, tt.tls)
			}
			if tt.sasl && config.Net.SASL.Mechanism != tt.mechanism {
				t.Errorf("SASL.Mechanism = %v, want %v", config.Net.SASL.Mechanism, tt.mechanism)
			}
		})
	}
}

func TestSecurityConfig_ApplySCRAMGenerator(t *testing.T) {
	config := sarama.NewConfig()
	security := SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "SCRAM-SHA-256", SASLUsername: "user", SASLPassword: "secret"}
	if err := security.apply(config); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	client := config.Net.SASL.SCRAMClientGeneratorFunc()
	if err := client.Begin("user", "secret", ""); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	first, err := client.Step("")
	if err != nil {
		t.Fatalf("Step() error = %v", err)
	}
	if first == "" {
		t.Error("expected client-first message")
	}
	if client.Done() {
		t.Error("conversation should not be done after the first step")
	}
}

func TestSecurityConfig_ApplyMSKProvider(t *testing.T) {
	config := sarama.NewConfig()
	security := SecurityConfig{Protocol: "SASL_SSL", SASLMechanism: "AWS_MSK_IAM", AWSRegion: "ap-south-1"}
	if err := security.apply(config); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	provider, ok := config.Net.SASL.TokenProvider.(*MSKAccessTokenProvider)
	if !ok {
		t.Fatalf("TokenProvider = %T, want *MSKAccessTokenProvider", config.Net.SASL.TokenProvider)
	}
	if provider.region != "ap-south-1" {
		t.Errorf("region = %s, want ap-south-1", provider.region)
	}
}

func TestSCRAMHashGenerators(t *testing.T) {
	if got := SHA256()().Size(); got != 32 {
		t.Errorf("SHA256 size = %d, want 32", got)
	}
	if got := SHA512()().Size(); got != 64 {
		t.Errorf("SHA512 size = %d, want 64", got)
	}
}
