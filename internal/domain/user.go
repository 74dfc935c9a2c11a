package domain

// UserRole разделяет покупателей и персонал магазина.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleStaff    UserRole = "staff"
)

// GuestUserID — ключ сессии неавторизованного покупателя.
const GuestUserID = "guest"

// User — профиль текущего пользователя, получаемый от внешнего identity-провайдера.
type User struct {
	ID   string   `json:"id"`
	Name string   `json:"name"`
	Role UserRole `json:"role"`
}

// IsStaff сообщает, относится ли пользователь к персоналу.
func (u User) IsStaff() bool {
	return u.Role == UserRoleStaff
}

// Guest возвращает профиль гостевой сессии.
func Guest() User {
	return User{ID: GuestUserID, Name: "Guest", Role: UserRoleCustomer}
}
