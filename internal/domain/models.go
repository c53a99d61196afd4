package domain

// Models lists every persisted entity in dependency order.
func Models() []any {
	return []any{
		&User{},
		&ParkingLot{},
		&ParkingSpot{},
		&Reservation{},
	}
}
