package dto

// Credentials are shared by the inbound and outbound transports and never mutated.
type Credentials struct {
	InboundHost  string
	InboundPort  int
	OutboundHost string
	OutboundPort int
	Address      string
	Secret       string
}
