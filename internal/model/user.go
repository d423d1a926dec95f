package model

type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Ctime int64  `json:"ctime"`
}
