package xid

import (
	"fmt"

	"github.com/google/uuid"
)

func New(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, uuid.NewString())
}
