// internal/videos/ledger.go
package videos

import (
	"fmt"

	"videostore/internal/apperr"
)

// CheckedOut is the number of copies currently out of the store.
func (v *Video) CheckedOut() int {
	return v.TotalInventory - v.AvailableInventory
}

// Reserve takes one copy off the shelf. It fails without mutating the
// video when no copy is available.
func (v *Video) Reserve() error {
	if v.AvailableInventory <= 0 {
		return apperr.New(apperr.OutOfStock, "Video %d %q is out of stock", v.ID, v.Title)
	}
	v.AvailableInventory--
	return nil
}

// Release puts one previously reserved copy back on the shelf.
func (v *Video) Release() error {
	if v.AvailableInventory >= v.TotalInventory {
		return fmt.Errorf("video %d: release would exceed total inventory %d", v.ID, v.TotalInventory)
	}
	v.AvailableInventory++
	return nil
}

// Resize changes the catalog size while keeping the copies that are out
// accounted for.
func (v *Video) Resize(total int) error {
	if total <= 0 {
		return apperr.New(apperr.InvalidInput, "Invalid data")
	}
	out := v.CheckedOut()
	if total < out {
		return apperr.New(apperr.InvalidInput, "Invalid data: %d copies of video %d are checked out, total_inventory cannot be %d", out, v.ID, total)
	}
	v.TotalInventory = total
	v.AvailableInventory = total - out
	return nil
}
