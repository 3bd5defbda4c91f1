package address

var (
	agentSeed    = []byte("agent")
	positionSeed = []byte("position")
	vaultSeed    = []byte("vault")
)

// Deriver computes record addresses for one program id.
type Deriver struct {
	programID Address
}

func NewDeriver(programID Address) *Deriver {
	return &Deriver{programID: programID}
}

func (d *Deriver) ProgramID() Address {
	return d.programID
}

// Agent: ["agent", authority, name]
func (d *Deriver) Agent(authority Address, name string) (Address, uint8, error) {
	return FindProgramAddress([][]byte{agentSeed, authority.Bytes(), []byte(name)}, d.programID)
}

// Position: ["position", agent, investor]
func (d *Deriver) Position(agent, investor Address) (Address, uint8, error) {
	return FindProgramAddress([][]byte{positionSeed, agent.Bytes(), investor.Bytes()}, d.programID)
}

// Vault: ["vault", agent]
func (d *Deriver) Vault(agent Address) (Address, uint8, error) {
	return FindProgramAddress([][]byte{vaultSeed, agent.Bytes()}, d.programID)
}
