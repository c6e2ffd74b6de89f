package rating

type RateReq struct {
	Rating int `json:"rating" validate:"required,gte=1,lte=5"`
}
