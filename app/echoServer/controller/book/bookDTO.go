package book

type CreateBookReq struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Author      string  `json:"author" validate:"required,max=200"`
	Year        int     `json:"year" validate:"gte=0,lte=3000"`
	Genre       string  `json:"genre" validate:"required,genre"`
	Rating      *int    `json:"rating" validate:"omitempty,gte=0,lte=5"`
	Description string  `json:"description" validate:"max=4000"`
	Image       string  `json:"image" validate:"max=2048"`
	Rent        bool    `json:"rent"`
	RentRegion  *string `json:"rent_region" validate:"omitempty,max=100"`
}
