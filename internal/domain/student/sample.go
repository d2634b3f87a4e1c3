package student

// SampleTable returns the demonstration dataset offered when no file is
// uploaded. It has no level column, so every row takes the session level.
func SampleTable() RawTable {
	return RawTable{
		Header: []string{"Nombre", "Bim1", "Bim2", "Bim3", "Bim4", "Asistencia", "Conducta"},
		Rows: [][]string{
			{"Juan Pérez", "14", "15", "13", "16", "95", "Bueno"},
			{"María López", "16", "17", "18", "17", "98", "Excelente"},
			{"Carlos Quispe", "11", "12", "10", "13", "85", "Regular"},
			{"Ana Mendoza", "18", "17", "19", "18", "97", "Excelente"},
			{"Luis García", "8", "9", "10", "12", "70", "Bajo"},
		},
	}
}
