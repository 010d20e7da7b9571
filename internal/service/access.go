package service

import (
	"strconv"

	"motorlist-chat/internal/domain"
)

// GuestVerifier checks that a guest id was issued by this server
type GuestVerifier interface {
	Verify(id string) bool
}

// AccessResolver decides who may read and write each conversation.
//
// Product rooms are private between the listing author and one viewer. An
// anonymous caller holding a room key is admitted on possession alone, so a
// guest keeps access to the room its browser created. With strict guests
// enabled, only server-signed guest ids are admitted that way.
type AccessResolver struct {
	strictGuests bool
	guests       GuestVerifier
}

// NewAccessResolver creates a resolver; guests may be nil when strict is false
func NewAccessResolver(strictGuests bool, guests GuestVerifier) *AccessResolver {
	return &AccessResolver{strictGuests: strictGuests, guests: guests}
}

// CanAccessProductRoom applies, in order: author, matching viewer, guest possession.
func (r *AccessResolver) CanAccessProductRoom(product *domain.Product, key domain.ProductRoomKey, actor domain.Actor) bool {
	if !actor.Anonymous() && actor.UserID == product.AuthorID {
		return true
	}

	if !actor.Anonymous() {
		return key.ViewerID == strconv.FormatInt(actor.UserID, 10)
	}

	if key.ViewerID == "" {
		return false
	}
	if r.strictGuests {
		return r.guests != nil && r.guests.Verify(key.ViewerID)
	}
	return true
}

// CanAccessPurchase admits only the two parties of the purchase.
func (r *AccessResolver) CanAccessPurchase(purchase *domain.Purchase, actor domain.Actor) bool {
	if actor.Anonymous() {
		return false
	}
	return actor.UserID == purchase.SellerID || actor.UserID == purchase.BuyerID
}

// ProductRole is seller for the listing author, viewer for everyone else
func (r *AccessResolver) ProductRole(product *domain.Product, actor domain.Actor) domain.Role {
	if !actor.Anonymous() && actor.UserID == product.AuthorID {
		return domain.RoleSeller
	}
	return domain.RoleViewer
}

// PurchaseRole is seller for the purchase seller, buyer otherwise
func (r *AccessResolver) PurchaseRole(purchase *domain.Purchase, actor domain.Actor) domain.Role {
	if !actor.Anonymous() && actor.UserID == purchase.SellerID {
		return domain.RoleSeller
	}
	return domain.RoleBuyer
}
