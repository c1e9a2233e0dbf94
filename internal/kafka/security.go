package kafka

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"fmt"
	"hash"

	"github.com/IBM/sarama"
	"github.com/aws/aws-msk-iam-sasl-signer-go/signer"
	"github.com/xdg-go/scram"
)

// configureSecurity applies the protocol and SASL mechanism to a Sarama config.
// The same settings serve the consumer group and the DLQ producer.
func configureSecurity(config *sarama.Config, kafkaConfig ConsumerConfig) error {
	switch kafkaConfig.SecurityProtocol {
	case "", "PLAINTEXT":
		return nil

	case "SASL_PLAINTEXT", "SASL_SSL":
		config.Net.SASL.Enable = true
		if err := configureSASL(config, kafkaConfig); err != nil {
			return err
		}
		if kafkaConfig.SecurityProtocol == "SASL_SSL" {
			enableTLS(config, kafkaConfig.TLSSkipVerify)
		}

	case "SSL":
		enableTLS(config, kafkaConfig.TLSSkipVerify)

	default:
		return fmt.Errorf("unsupported security protocol: %s", kafkaConfig.SecurityProtocol)
	}

	return nil
}

func configureSASL(config *sarama.Config, kafkaConfig ConsumerConfig) error {
	switch kafkaConfig.SASLMechanism {
	case "PLAIN":
		config.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		config.Net.SASL.User = kafkaConfig.SASLUsername
		config.Net.SASL.Password = kafkaConfig.SASLPassword

	case "SCRAM-SHA-256":
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
		config.Net.SASL.User = kafkaConfig.SASLUsername
		config.Net.SASL.Password = kafkaConfig.SASLPassword
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA256()}
		}

	case "SCRAM-SHA-512":
		config.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
		config.Net.SASL.User = kafkaConfig.SASLUsername
		config.Net.SASL.Password = kafkaConfig.SASLPassword
		config.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
			return &XDGSCRAMClient{HashGeneratorFcn: SHA512()}
		}

	case "AWS_MSK_IAM":
		config.Net.SASL.Mechanism = sarama.SASLTypeOAuth
		// Sarama validates user and password even for OAUTHBEARER
		config.Net.SASL.User = "token"
		config.Net.SASL.Password = "token"
		region := kafkaConfig.Region
		if region == "" {
			region = "us-east-1"
		}
		config.Net.SASL.TokenProvider = &MSKAccessTokenProvider{region: region}

	default:
		return fmt.Errorf("unsupported SASL mechanism: %s", kafkaConfig.SASLMechanism)
	}
	return nil
}

func enableTLS(config *sarama.Config, skipVerify bool) {
	config.Net.TLS.Enable = true
	config.Net.TLS.Config = &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: skipVerify, // local brokers with self-signed certs
	}
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
		Token: token,
		Extensions: map[string]string{
			"expiry": fmt.Sprintf("%d", expiryMs),
		},
	}, nil
}

// XDGSCRAMClient implements sarama.SCRAMClient on top of xdg-go/scram.
type XDGSCRAMClient struct {
	*scram.Client
	*scram.ClientConversation
	scram.HashGeneratorFcn
}

// Begin starts the SCRAM authentication process.
func (x *XDGSCRAMClient) Begin(userName, password, authzID string) (err error) {
	x.Client, err = x.HashGeneratorFcn.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	x.ClientConversation = x.Client.NewConversation()
	return nil
}

// Step performs a step in the SCRAM authentication.
func (x *XDGSCRAMClient) Step(challenge string) (response string, err error) {
	return x.ClientConversation.Step(challenge)
}

// Done indicates if authentication is complete.
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

var _ sarama.SCRAMClient = (*XDGSCRAMClient)(nil)
