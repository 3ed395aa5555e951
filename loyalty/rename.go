package loyalty

// RenameCustomer rewrites identity on every order whose stored phone equals
// oldPhone exactly (no trimming). It returns a new ledger slice and the
// number of orders changed; when changed is 0 the caller can skip saving.
//
// This must run before the directory entry for oldPhone is replaced,
// otherwise the next Reconcile recreates a record under oldPhone.
func RenameCustomer(oldPhone, newPhone, newName string, orders []Order) ([]Order, int) {
	out := make([]Order, len(orders))
	copy(out, orders)

	changed := 0
	for i := range out {
		if out[i].CustomerPhone != oldPhone {
			continue
		}
		out[i].CustomerPhone = newPhone
		out[i].CustomerName = newName
		changed++
	}
	return out, changed
}
