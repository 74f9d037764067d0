package crit

import "fmt"

func errUnknownOperation(kind interface{}) error {
	return fmt.Errorf("crit: unknown write operation %v", kind)
}
