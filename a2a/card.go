package a2a

import (
	"fmt"

	a2ago "github.com/a2aproject/a2a-go/a2a"
	"github.com/a2aproject/a2a-go/a2asrv"
)

// WellKnownCardPath is where a server publishes its agent card.
const WellKnownCardPath = a2asrv.WellKnownAgentCardPath

// LegacyCardPath is the card path of protocol versions before 0.3. Servers
// publish the card there as well.
const LegacyCardPath = "/.well-known/agent.json"

// LegalAssistantCard describes the remote legal delegate served on
// host:port.
func LegalAssistantCard(host string, port int) *a2ago.AgentCard {
	return &a2ago.AgentCard{
		Name:               "Legal Assistant Agent",
		Description:        "Helps users with legal queries and advice",
		URL:                fmt.Sprintf("http://%s:%d/", host, port),
		PreferredTransport: a2ago.TransportProtocolJSONRPC,
		Version:            "1.0.0",
		ProtocolVersion:    "0.3.0",
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Capabilities:       a2ago.AgentCapabilities{Streaming: true},
		Skills: []a2ago.AgentSkill{{
			ID:   "legal_advice",
			Name: "Legal Assistant Tool",
			Description: "Provides legal guidance using a PDF document as reference, compares legal texts, " +
				"checks jurisdictions, computes deadlines and formats text into a Word document.",
			Tags:     []string{"legal", "compliance", "guidance"},
			Examples: []string{"What are the sick days policies in this contract?"},
		}},
	}
}
