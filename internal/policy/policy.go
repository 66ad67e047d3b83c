package policy

import (
	"market/internal/apperr"
	"market/internal/models"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   models.Role
}

func (a Actor) IsStaff() bool { return a.Role.IsStaff() }

// Action names an operation subject to authorization.
type Action string

const (
	ProductRead   Action = "product.read"
	ProductManage Action = "product.manage"

	CartUse Action = "cart.use"

	OrderCreate      Action = "order.create"
	OrderRead        Action = "order.read"
	OrderUpdate      Action = "order.update"
	OrderCancel      Action = "order.cancel"
	OrderSetStatus   Action = "order.set_status"
	OrderForceDelete Action = "order.force_delete"

	PaymentCreate      Action = "payment.create"
	PaymentRead        Action = "payment.read"
	PaymentSubmitProof Action = "payment.submit_proof"
	PaymentReview      Action = "payment.review"
	PaymentApprove     Action = "payment.approve"
	PaymentReject      Action = "payment.reject"
	PaymentComplete    Action = "payment.complete"
	PaymentFail        Action = "payment.fail"

	ShipmentCreate       Action = "shipment.create"
	ShipmentRead         Action = "shipment.read"
	ShipmentUpdateStatus Action = "shipment.update_status"

	FavoriteUse     Action = "favorite.use"
	FavoriteReadAny Action = "favorite.read_any"
)

// Resource identifies what an action is applied to. OwnerID is empty for
// resources that no user owns, such as the catalog.
type Resource struct {
	Kind    string
	ID      string
	OwnerID string
}

// Policy decides whether an actor may perform an action on a resource.
type Policy interface {
	Authorize(actor Actor, action Action, resource Resource) error
}

// RoleBased grants staff everything, lets customers act on what they own,
// and reserves the actions in staffOnly for staff.
type RoleBased struct {
	staffOnly map[Action]bool
	anyone    map[Action]bool
}

// NewRoleBased returns the store's default policy.
func NewRoleBased() *RoleBased {
	return &RoleBased{
		staffOnly: map[Action]bool{
			ProductManage:        true,
			OrderSetStatus:       true,
			OrderForceDelete:     true,
			PaymentReview:        true,
			PaymentApprove:       true,
			PaymentReject:        true,
			PaymentComplete:      true,
			ShipmentCreate:       true,
			ShipmentUpdateStatus: true,
			FavoriteReadAny:      true,
		},
		anyone: map[Action]bool{
			ProductRead: true,
			CartUse:     true,
			OrderCreate: true,
			FavoriteUse: true,
		},
	}
}

func (p *RoleBased) Authorize(actor Actor, action Action, resource Resource) error {
	if actor.UserID == "" {
		return apperr.Unauthorized(string(action))
	}
	if actor.IsStaff() {
		return nil
	}
	if p.staffOnly[action] {
		return apperr.Unauthorized(string(action))
	}
	if p.anyone[action] {
		return nil
	}
	if resource.OwnerID != "" && resource.OwnerID == actor.UserID {
		return nil
	}
	return apperr.Unauthorized(string(action))
}
