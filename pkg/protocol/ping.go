package protocol

import (
	"github.com/ZentaChain/mwnode/pkg/core"
	"github.com/ZentaChain/mwnode/pkg/ser"
)

// Ping carries the sender's chain state, used to decide whether sync is
// needed.
type Ping struct {
	TotalDifficulty core.Difficulty
	Height          uint64
}

// Pong answers a Ping with the same shape.
type Pong struct {
	TotalDifficulty core.Difficulty
	Height          uint64
}

func writeHeartbeat(w ser.Writer, diff core.Difficulty, height uint64) error {
	if err := diff.Write(w); err != nil {
		return err
	}
	return w.WriteU64(height)
}

func readHeartbeat(r ser.Reader, diff *core.Difficulty, height *uint64) error {
	if err := diff.Read(r); err != nil {
		return err
	}
	h, err := r.ReadU64()
	if err != nil {
		return err
	}
	*height = h
	return nil
}

func (p *Ping) Write(w ser.Writer) error {
	return writeHeartbeat(w, p.TotalDifficulty, p.Height)
}

func (p *Ping) Read(r ser.Reader) error {
	return readHeartbeat(r, &p.TotalDifficulty, &p.Height)
}

func (p *Pong) Write(w ser.Writer) error {
	return writeHeartbeat(w, p.TotalDifficulty, p.Height)
}

func (p *Pong) Read(r ser.Reader) error {
	return readHeartbeat(r, &p.TotalDifficulty, &p.Height)
}
