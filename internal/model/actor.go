package model

import (
	"strings"

	"github.com/google/uuid"
)

type UserRole string

const (
	UserRoleAdmin         UserRole = "admin"
	UserRoleFacilityAdmin UserRole = "facility_admin"
	UserRoleFacilityStaff UserRole = "facility_staff"
	UserRoleCustomer      UserRole = "customer"
)

type Capability string

const (
	// CapPlatformOverride lifts the edit deadline and the submitted lock on any order.
	CapPlatformOverride Capability = "platform_override"
	// CapFacilityOverride lifts the submitted lock on orders of the actor's own facility.
	CapFacilityOverride Capability = "facility_override"
	CapCancelOrders     Capability = "cancel_orders"
	CapManageGiftCards  Capability = "manage_gift_cards"
)

var roleCapabilities = map[UserRole][]Capability{
	UserRoleAdmin: {
		CapPlatformOverride,
		CapFacilityOverride,
		CapCancelOrders,
		CapManageGiftCards,
	},
	UserRoleFacilityAdmin: {
		CapFacilityOverride,
		CapCancelOrders,
	},
	UserRoleFacilityStaff: nil,
	UserRoleCustomer:      nil,
}

func ParseUserRole(raw string) (UserRole, bool) {
	role := UserRole(strings.ToLower(strings.TrimSpace(raw)))
	_, ok := roleCapabilities[role]
	return role, ok
}

// Actor is the resolved identity behind a mutating call.
type Actor struct {
	UserID       uuid.UUID
	Role         UserRole
	FacilityID   *uuid.UUID
	capabilities map[Capability]struct{}
}

func NewActor(userID uuid.UUID, role UserRole, facilityID *uuid.UUID) Actor {
	caps := make(map[Capability]struct{}, len(roleCapabilities[role]))
	for _, capability := range roleCapabilities[role] {
		caps[capability] = struct{}{}
	}
	return Actor{
		UserID:       userID,
		Role:         role,
		FacilityID:   cloneUUIDPtr(facilityID),
		capabilities: caps,
	}
}

func (a Actor) Has(capability Capability) bool {
	_, ok := a.capabilities[capability]
	return ok
}

func (a Actor) BelongsTo(facilityID uuid.UUID) bool {
	return a.FacilityID != nil && *a.FacilityID == facilityID
}

// HasFacilityOverride reports whether the actor may edit a submitted order of facilityID.
func (a Actor) HasFacilityOverride(facilityID uuid.UUID) bool {
	if a.Has(CapPlatformOverride) {
		return true
	}
	return a.Has(CapFacilityOverride) && a.BelongsTo(facilityID)
}
