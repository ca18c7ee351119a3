package enums

type SignalKind string

const (
	SignalOffer        SignalKind = "offer"
	SignalAnswer       SignalKind = "answer"
	SignalICECandidate SignalKind = "ice-candidate"
	SignalEnd          SignalKind = "end"
	SignalChat         SignalKind = "chat"
	SignalTyping       SignalKind = "typing"
)
