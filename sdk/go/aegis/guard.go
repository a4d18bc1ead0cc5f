package aegis

import "context"

// ExecFunc executes an approved transaction and returns its on-chain hash.
type ExecFunc func(ctx context.Context, tx Tx) (string, error)

// Wrap returns a new ExecFunc that validates every transaction before
// calling fn. Anything but an APPROVED verdict returns a *BlockedError
// without calling fn; transport failures block as well.
func (c *Client) Wrap(fn ExecFunc) ExecFunc {
	return func(ctx context.Context, tx Tx) (string, error) {
		v, err := c.Validate(ctx, tx)
		if !v.Allowed() {
			return "", &BlockedError{Tx: tx, Verdict: v}
		}
		if err != nil {
			return "", err
		}
		return fn(ctx, tx)
	}
}
