package domain

import "fmt"

// Update is the discriminated union of everything the fleet store can
// reconcile. Transport adapters decode their wire formats into one of the
// concrete variants below; anything that matches no variant is rejected at
// the boundary and never reaches the store.
type Update interface {
	// Kind returns the variant tag, used for logging and metrics.
	Kind() string
	// Validate checks structural invariants before any store mutation.
	Validate() error
}

// FullSync replaces the entire driver collection. Drivers absent from the
// list are removed; drivers present are inserted or overwritten.
type FullSync struct {
	Drivers []Driver
}

func (FullSync) Kind() string { return "full_sync" }

func (u FullSync) Validate() error {
	seen := make(map[string]struct{}, len(u.Drivers))
	for i, d := range u.Drivers {
		if d.ID == "" {
			return fmt.Errorf("%w: driver[%d] missing id", ErrInvalidUpdate, i)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q in full sync", ErrInvalidUpdate, d.ID)
		}
		seen[d.ID] = struct{}{}
		if !d.Location.Valid() {
			return fmt.Errorf("%w: driver %q has invalid location", ErrInvalidUpdate, d.ID)
		}
		if d.Status != "" && !d.Status.Valid() {
			return fmt.Errorf("%w: driver %q has unknown status %q", ErrInvalidUpdate, d.ID, d.Status)
		}
	}
	return nil
}

// DriverPatch shallow-merges the provided (non-nil) fields over the stored
// record. A patch for an unknown id creates the driver.
type DriverPatch struct {
	ID       string
	Name     *string
	Vehicle  *string
	Status   *DriverStatus
	Location *Coordinates
	Phone    *string
	Delivery *Delivery
}

func (DriverPatch) Kind() string { return "patch" }

func (u DriverPatch) Validate() error {
	if u.ID == "" {
		return fmt.Errorf("%w: patch missing driver id", ErrInvalidUpdate)
	}
	if u.Location != nil && !u.Location.Valid() {
		return fmt.Errorf("%w: patch for %q has invalid location", ErrInvalidUpdate, u.ID)
	}
	if u.Status != nil && !u.Status.Valid() {
		return fmt.Errorf("%w: patch for %q has unknown status %q", ErrInvalidUpdate, u.ID, *u.Status)
	}
	return nil
}

// RawReport is the translated external shape: a bare position fix with
// optional identity. It is normalized into a DriverPatch before
// reconciliation; a missing id is synthesized by the store.
type RawReport struct {
	ID    string
	Lat   float64
	Lng   float64
	Name  string
	Phone string
}

func (RawReport) Kind() string { return "raw_report" }

func (u RawReport) Validate() error {
	if !(Coordinates{Lat: u.Lat, Lng: u.Lng}).Valid() {
		return fmt.Errorf("%w: raw report has invalid position (%v, %v)", ErrInvalidUpdate, u.Lat, u.Lng)
	}
	return nil
}
