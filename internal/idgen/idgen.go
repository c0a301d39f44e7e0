package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// Generator mints photo identifiers. IDs are snowflake values rendered as
// decimal strings: time-ordered, unique within a node, and free of the ':'
// action token delimiter.
type Generator struct {
	node *snowflake.Node
}

// New returns a generator for the given snowflake node (0..1023).
func New(node int64) (*Generator, error) {
	n, err := snowflake.NewNode(node)
	if err != nil {
		return nil, fmt.Errorf("failed to create id node %d: %w", node, err)
	}
	return &Generator{node: n}, nil
}

func (g *Generator) Generate() string {
	return g.node.Generate().String()
}
