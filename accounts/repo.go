package accounts

type Repo interface {
	Upsert(account *Account) error
	GetByUsername(username string) (*Account, error)
	GetByEmail(email string) (*Account, error)
	GetByID(id string) (*Account, error)
	SetLastLogin(id string) error
}
