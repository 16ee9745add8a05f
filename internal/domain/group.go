package domain

type GroupID string

type Group struct {
	ID      GroupID  `json:"id"`
	Name    string   `json:"name"`
	Members []UserID `json:"members"`
}

func (g *Group) HasMember(id UserID) bool {
	for _, m := range g.Members {
		if m == id {
			return true
		}
	}
	return false
}
