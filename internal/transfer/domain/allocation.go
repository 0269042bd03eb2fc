package transfer

// PeriodGroup holds certificates sharing one exact period, in fetch order.
type PeriodGroup struct {
	Period       Period
	Certificates []GranularCertificate
}

// GroupByPeriod groups certificates by exact period. Groups keep the order in
// which their period first appears and certificates keep fetch order.
func GroupByPeriod(certs []GranularCertificate) []PeriodGroup {
	index := make(map[PeriodKey]int)
	var groups []PeriodGroup
	for _, cert := range certs {
		key := cert.Period.Key()
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, PeriodGroup{Period: cert.Period})
		}
		groups[pos].Certificates = append(groups[pos].Certificates, cert)
	}
	return groups
}

// Demand is the unmatched consumption of one period.
type Demand struct {
	Period   Period
	Quantity int64
}

// UnmatchedConsumption returns, per exact period, consumption not yet covered
// by production the same organization holds. Periods without unmatched
// quantity are dropped.
func UnmatchedConsumption(certs []GranularCertificate) ([]Demand, error) {
	var result []Demand
	for _, group := range GroupByPeriod(certs) {
		var consumption, production int64
		for _, cert := range group.Certificates {
			switch cert.Type {
			case CertificateTypeConsumption:
				consumption += cert.Quantity
			case CertificateTypeProduction:
				production += cert.Quantity
			default:
				return nil, ErrUnknownCertificateType
			}
		}
		unmatched := consumption - production
		if unmatched <= 0 {
			continue
		}
		result = append(result, Demand{Period: group.Period, Quantity: unmatched})
	}
	return result, nil
}

// Allocation is a quantity taken from one certificate.
type Allocation struct {
	Certificate GranularCertificate
	Quantity    int64
}

// AllocateFirstFit walks certs in order and takes min(remaining, quantity)
// from each until demand is covered. Zero allocations are not returned.
func AllocateFirstFit(certs []GranularCertificate, demand int64) []Allocation {
	var result []Allocation
	var selected int64
	for _, cert := range certs {
		remaining := demand - selected
		take := min(remaining, cert.Quantity)
		if take <= 0 {
			break
		}
		selected += take
		result = append(result, Allocation{Certificate: cert, Quantity: take})
	}
	return result
}

// FilterByType keeps certificates of the given type.
func FilterByType(certs []GranularCertificate, certType CertificateType) []GranularCertificate {
	var result []GranularCertificate
	for _, cert := range certs {
		if cert.Type == certType {
			result = append(result, cert)
		}
	}
	return result
}
