package mapper

import (
	"savings-client/internal/entity"
	"savings-client/internal/model"
)

type UserMapper struct{}

func NewUserMapper() *UserMapper {
	return &UserMapper{}
}

// ToProfile exposes the public part of a user. Password hashes never leave
// the entity.
func (m *UserMapper) ToProfile(u *entity.User) *model.UserProfile {
	if u == nil {
		return nil
	}
	p := &model.UserProfile{
		ID:        u.Id.String(),
		Email:     u.Email,
		Username:  u.Username,
		FullName:  u.FullName,
		IsAdmin:   u.Role == entity.UserRoleAdmin,
		IsPremium: u.IsPremium,
	}
	if u.AvatarURL != nil {
		p.AvatarURL = *u.AvatarURL
	}
	return p
}
