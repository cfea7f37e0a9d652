package conspiracy

// Words is the pool that human-readable game IDs are built from.
var Words = []string{
	"agent", "alias", "archive", "asset", "badge", "bluff", "briefcase",
	"bunker", "cabal", "cipher", "cloak", "codeword", "coin", "console",
	"council", "courier", "court", "crown", "dagger", "decoy", "dispatch",
	"dossier", "double", "duel", "embassy", "envoy", "exile", "gambit",
	"gossip", "handler", "heist", "hideout", "informant", "intrigue",
	"lantern", "ledger", "letter", "mask", "masquerade", "meeting",
	"mirror", "mole", "motive", "oath", "palace", "parley", "passport",
	"plot", "poison", "purse", "quarry", "ransom", "rendezvous", "riddle",
	"rumor", "safehouse", "scheme", "seal", "secret", "shadow", "signal",
	"smuggler", "snare", "spy", "stash", "throne", "token", "treason",
	"tunnel", "turncoat", "vault", "veil", "vendetta", "whisper", "wire",
}
