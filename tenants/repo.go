package tenants

type Repo interface {
	Upsert(site *Site) error
	Delete(siteID string) error
	Get(siteID string) (*Site, error)
	List(offset, limit int) ([]*Site, error)
}
