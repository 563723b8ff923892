package delivery

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console writes deliveries to a writer, used for local runs and tests
type Console struct {
	out io.Writer
	mu  sync.Mutex
}

// NewConsole creates a console channel writing to out
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Name identifies the channel
func (c *Console) Name() string { return "console" }

// Deliver prints the message in a framed block
func (c *Console) Deliver(ctx context.Context, p Payload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	rule := strings.Repeat("=", 60)
	_, err := fmt.Fprintf(c.out, "\n%s\nDELIVERY %s\nuser: %s\nitem: %s\ntime: %s\n%s\n%s\n%s\n\n",
		rule, strings.ToUpper(string(p.Kind)), p.UserID, p.ItemID,
		p.DeliveredAt.Format("2006-01-02 15:04:05"), rule, p.Message, rule)

	return err
}
