package kafka

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"fmt"
	"hash"
	"strconv"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/xdg-go/scram"
)

// SecurityConfig holds the broker security settings shared by the consumer
// and the DLQ producer.
type SecurityConfig struct {
	Protocol              string
	SASLMechanism         string
	SASLUsername          string
	SASLPassword          string
	AWSRegion             string
	TLSInsecureSkipVerify bool
}

// Validate checks the protocol and mechanism combination.
func (s SecurityConfig) Validate() error {
	switch s.Protocol {
	case "", "PLAINTEXT", "SSL":
		return nil
	case "SASL_PLAINTEXT", "SASL_SSL":
	default:
		return fmt.Errorf("unsupported security protocol: %s", s.Protocol)
	}

	switch s.SASLMechanism {
	case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		if s.SASLUsername == "" || s.SASLPassword == "" {
			return fmt.Errorf("sasl mechanism %s requires username and password", s.SASLMechanism)
		}
	case "AWS_MSK_IAM":
		if s.AWSRegion == "" {
			return fmt.Errorf("sasl mechanism AWS_MSK_IAM requires an aws region")
		}
	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", s.SASLMechanism)
	}
	return nil
}

func (s SecurityConfig) tlsConfig() *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: s.TLSInsecureSkipVerify,
	}
}

// apply writes the security settings into a sarama config.
func (s SecurityConfig) apply(config *sarama.Config) error {
	if err := s.Validate(); err != nil {
		return err
	}

	switch s.Protocol {
	case "", "PLAINTEXT":
		return nil
	case "SSL":
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = s.tlsConfig()
		return nil
	}

	config.Net.SASL.Enable = true
	switch s.SASLMechanism {
	case "PLAIN":
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		config.Net.SASL.User = s.SASLUsername
		config.Net.SASL.Password = s.SASLPassword

	case "SCRAM-SHA-256":
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		config.Net.SASL.User = s.SASLUsername
		config.Net.SASL.Password = s.SASLPassword
		config.Net.SASL.SCRAMClientGeneratorFunc = scramGenerator(SHA256())

	case "SCRAM-SHA-512":
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		config.Net.SASL.User = s.SASLUsername
		config.Net.SASL.Password = s.SASLPassword
		config.Net.SASL.SCRAMClientGeneratorFunc = scramGenerator(SHA512())

	case "AWS_MSK_IAM":
		config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: s.AWSRegion}
	}

	if s.Protocol == "SASL_SSL" {
		config.Net.TLS.Enable = true
		config.Net.TLS.Config = s.tlsConfig()
	}
	return nil
}

// MSKAccessTokenProvider implements sarama.AccessTokenProvider for AWS MSK IAM authentication.
type MSKAccessTokenProvider struct {
	region string
}

// Token generates an AWS MSK IAM authentication token from the default credential chain.
func (m *MSKAccessTokenProvider) Token() (*sarama.AccessToken, error) {
	token, expiryMs, err := signer.GenerateAuthToken(context.Background(), m.region)
	if err != nil {
		return nil, fmt.Errorf("failed to generate MSK IAM token: %w", err)
	}

	return &sarama.AccessToken{
		Token:      token,
		Extensions: map[string]string{"expiry": strconv.FormatInt(expiryMs, 10)},
	}, nil
}

// XDGSCRAMClient implements sarama.SCRAMClient on top of xdg-go/scram.
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

var _ sarama.SCRAMClient = (*XDGSCRAMClient)(nil)

func scramGenerator(fcn scram.HashGeneratorFcn) func() sarama.SCRAMClient {
	return func() sarama.SCRAMClient {
		return &XDGSCRAMClient{HashGeneratorFcn: fcn}
	}
}

// Begin starts a SCRAM conversation.
func (x *XDGSCRAMClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

// Step answers one server challenge.
func (x *XDGSCRAMClient) Step(challenge string) (string, error) {
	return x.ClientConversation.Step(challenge)
}

// Done reports whether the conversation finished.
func (x *XDGSCRAMClient) Done() bool {
	return x.ClientConversation.Done()
}

// SHA256 returns a SHA256 hash generator.
func SHA256() scram.HashGeneratorFcn {
	return func() hash.Hash { return sha256.New() }
}

// SHA512 returns a SHA512 hash generator.
func SHA512() scram.HashGeneratorFcn {
	return func() hash.Hash { return sha512.New() }
}
