package domain

// State é derivado de um SubscriptionRecord e nunca é gravado.
//
// NeverGranted e Inactive parecem iguais para quem consome (is_premium=false); só
// diferem em já ter existido uma expiração gravada.
type State string

const (
	StateNeverGranted State = "never_granted"
	StateActive       State = "active"
	StateStaleExpired State = "stale_expired"
	StateInactive     State = "inactive"
)

// Transition é uma aresta do ciclo de vida.
type Transition struct {
	From State
	To   State
}

var validTransitions = map[Transition]bool{
	{StateNeverGranted, StateActive}:       true, // primeira concessão ou extend
	{StateActive, StateActive}:             true, // recompra reinicia a janela
	{StateActive, StateStaleExpired}:       true, // o tempo passa
	{StateActive, StateInactive}:           true, // revoke do admin
	{StateStaleExpired, StateActive}:       true,
	{StateStaleExpired, StateInactive}:     true, // varredura ou revoke
	{StateInactive, StateActive}:           true,
	{StateInactive, StateInactive}:         true, // revoke repetido
	{StateNeverGranted, StateNeverGranted}: true,
}

// CanTransition diz se o ciclo de vida permite ir de um estado para outro.
func CanTransition(from, to State) bool {
	return validTransitions[Transition{from, to}]
}
