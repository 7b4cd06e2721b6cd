package kafka

import (
	"github.com/IBM/sarama"
	"github.com/xdg-go/scram"
)

var _ sarama.SCRAMClient = (*scramClient)(nil)

// scramMechanisms maps a configured SASL mechanism to its sarama name and
// hash.
var scramMechanisms = map[string]struct {
	mechanism sarama.SASLMechanism
	hash      scram.HashGeneratorFcn
}{
	"SCRAM-SHA-256": {sarama.SASLTypeSCRAMSHA256, scram.SHA256},
	"SCRAM-SHA-512": {sarama.SASLTypeSCRAMSHA512, scram.SHA512},
}

// scramClient adapts an xdg-go/scram conversation to sarama.SCRAMClient.
// sarama creates one per broker connection.
type scramClient struct {
	hash scram.HashGeneratorFcn
	conv *scram.ClientConversation
}

func newSCRAMClientGenerator(hash scram.HashGeneratorFcn) func() sarama.SCRAMClient {
	return func() sarama.SCRAMClient {
		return &scramClient{hash: hash}
	}
}

// Begin starts a conversation for the given credentials.
func (c *scramClient) Begin(userName, password, authzID string) error {
	client, err := c.hash.NewClient(userName, password, authzID)
	if err != nil {
		return err
	}
	c.conv = client.NewConversation()
	return nil
}

// Step answers one server challenge. The first call takes "".
func (c *scramClient) Step(challenge string) (string, error) {
	return c.conv.Step(challenge)
}

// Done reports whether the server signature has been verified.
func (c *scramClient) Done() bool {
	return c.conv.Done()
}
