package catalog

// SeedItems returns the built-in French catalog used by `reel catalog seed`
// and by tests.
func SeedItems() []Item {
	out := make([]Item, len(seed))
	for i, it := range seed {
		it.Genres = append([]string(nil), it.Genres...)
		it.Regions = []string{"FR"}
		it.Language = "fr"
		out[i] = it
	}
	return out
}

func seedItem(id, title string, year, runtime int, kind, director string, genres []string, energy, valence, arousal float64, slug, overview string) Item {
	return Item{
		Metadata: Metadata{
			ID:           id,
			Title:        title,
			Year:         year,
			Runtime:      runtime,
			Genres:       genres,
			Overview:     overview,
			Director:     director,
			Kind:         kind,
			StreamingURL: "https://www.tv5monde.com/watch/" + slug,
		},
		Profile: Profile{Energy: energy, Valence: valence, Arousal: arousal},
	}
}

var seed = []Item{
	// light comedies
	seedItem("fr-comedy-001", "Les Intouchables", 2011, 112, "movie", "Olivier Nakache", []string{"Comedy", "Drama"}, 0.4, 0.8, 0.5, "les-intouchables",
		"After he becomes a quadriplegic from a paragliding accident, an aristocrat hires a young man from the projects to be his caregiver."),
	seedItem("fr-comedy-002", "Bienvenue chez les Ch'tis", 2008, 106, "movie", "Dany Boon", []string{"Comedy"}, 0.5, 0.9, 0.4, "bienvenue-chtis",
		"A French postal worker is transferred to the far north of France and discovers the warmth and humor of the locals."),
	seedItem("fr-comedy-003", "Le Dîner de Cons", 1998, 80, "movie", "Francis Veber", []string{"Comedy"}, 0.5, 0.85, 0.5, "diner-de-cons",
		"A group of rich Parisians compete to bring the biggest idiot to their weekly dinner, until one guest turns the tables."),
	seedItem("fr-comedy-004", "Qu'est-ce qu'on a fait au Bon Dieu?", 2014, 97, "movie", "Philippe de Chauveron", []string{"Comedy"}, 0.6, 0.8, 0.5, "bon-dieu",
		"A Catholic French couple sees their four daughters marry men of different religions and backgrounds."),
	seedItem("fr-comedy-005", "OSS 117: Le Caire, nid d'espions", 2006, 99, "movie", "Michel Hazanavicius", []string{"Comedy", "Action"}, 0.6, 0.85, 0.6, "oss117-caire",
		"A suave but clueless French secret agent travels to Cairo in 1955 to investigate the death of a colleague."),
	seedItem("fr-comedy-series-001", "Dix pour cent", 2015, 52, "series", "", []string{"Comedy", "Drama"}, 0.5, 0.75, 0.5, "dix-pour-cent",
		"A Parisian talent agency navigates the egos and demands of French celebrities."),

	// emotional dramas
	seedItem("fr-drama-001", "Amélie", 2001, 122, "movie", "Jean-Pierre Jeunet", []string{"Comedy", "Romance", "Fantasy"}, 0.4, 0.7, 0.4, "amelie",
		"A whimsical young woman in Montmartre decides to change the lives of those around her for the better."),
	seedItem("fr-drama-002", "La Vie en Rose", 2007, 140, "movie", "Olivier Dahan", []string{"Biography", "Drama", "Music"}, 0.4, 0.3, 0.5, "la-vie-en-rose",
		"The story of Édith Piaf, from her impoverished childhood to becoming the most celebrated singer in France."),
	seedItem("fr-drama-003", "Les Choristes", 2004, 97, "movie", "Christophe Barratier", []string{"Drama", "Music"}, 0.35, 0.65, 0.4, "les-choristes",
		"A failed musician takes a job at a boarding school for troubled boys and transforms their lives through music."),
	seedItem("fr-drama-004", "Le Petit Prince", 2015, 108, "movie", "Mark Osborne", []string{"Animation", "Fantasy", "Family"}, 0.3, 0.6, 0.35, "le-petit-prince",
		"A little girl befriends an elderly aviator and discovers a magical story."),
	seedItem("fr-drama-005", "Séraphine", 2008, 125, "movie", "Martin Provost", []string{"Biography", "Drama"}, 0.25, 0.4, 0.3, "seraphine",
		"A humble housekeeper becomes one of the most celebrated naive painters of the early 20th century."),
	seedItem("fr-drama-series-001", "Un Village Français", 2009, 52, "series", "", []string{"Drama", "War", "History"}, 0.35, 0.2, 0.45, "un-village-francais",
		"Daily life in a village in central France during the German occupation."),

	// thrillers
	seedItem("fr-thriller-001", "Ne le dis à personne", 2006, 131, "movie", "Guillaume Canet", []string{"Crime", "Drama", "Mystery", "Thriller"}, 0.7, 0.1, 0.8, "ne-le-dis-a-personne",
		"Eight years after his wife's murder, a doctor receives an anonymous email suggesting she may still be alive."),
	seedItem("fr-thriller-002", "La Haine", 1995, 98, "movie", "Mathieu Kassovitz", []string{"Drama", "Crime"}, 0.75, -0.2, 0.85, "la-haine",
		"Twenty-four hours in the lives of three young men in the French suburbs following riots."),
	seedItem("fr-thriller-003", "Le Prophète", 2009, 155, "movie", "Jacques Audiard", []string{"Crime", "Drama", "Thriller"}, 0.7, -0.1, 0.75, "le-prophete",
		"A young man sent to a French prison rises through the ranks of organized crime."),
	seedItem("fr-thriller-004", "Les Rivières Pourpres", 2000, 106, "movie", "Mathieu Kassovitz", []string{"Crime", "Mystery", "Thriller"}, 0.75, -0.1, 0.8, "les-rivieres-pourpres",
		"Two detectives investigate separate cases that lead them to a remote mountain town."),
	seedItem("fr-thriller-005", "Bac Nord", 2021, 104, "movie", "Cédric Jimenez", []string{"Crime", "Drama", "Thriller"}, 0.8, 0, 0.85, "bac-nord",
		"Three cops from the northern districts of Marseille are caught up in a corruption scandal."),
	seedItem("fr-thriller-series-001", "Lupin", 2021, 45, "series", "", []string{"Crime", "Drama", "Mystery"}, 0.7, 0.3, 0.75, "lupin",
		"Inspired by Arsène Lupin, a gentleman thief seeks revenge against a wealthy family."),
	seedItem("fr-thriller-series-002", "Engrenages", 2005, 52, "series", "", []string{"Crime", "Drama", "Thriller"}, 0.65, 0, 0.7, "engrenages",
		"A police procedural following Paris officers and the judiciary through complex criminal cases."),

	// thought-provoking
	seedItem("fr-think-001", "Entre les murs", 2008, 128, "movie", "Laurent Cantet", []string{"Drama"}, 0.5, 0.2, 0.6, "entre-les-murs",
		"A year in the life of a French teacher in a tough inner-city high school."),
	seedItem("fr-think-002", "Être et avoir", 2002, 104, "movie", "Nicolas Philibert", []string{"Documentary"}, 0.3, 0.5, 0.35, "etre-et-avoir",
		"A year in the life of a one-room schoolhouse in rural France and its dedicated teacher."),
	seedItem("fr-think-003", "Le Cercle Rouge", 1970, 140, "movie", "Jean-Pierre Melville", []string{"Crime", "Drama", "Thriller"}, 0.45, 0.1, 0.55, "le-cercle-rouge",
		"A heist film about fate and honor among thieves."),
	seedItem("fr-think-004", "Le Samouraï", 1967, 105, "movie", "Jean-Pierre Melville", []string{"Crime", "Drama", "Thriller"}, 0.4, 0, 0.5, "le-samourai",
		"A hitman lives by a strict code of honor until a job goes wrong."),
	seedItem("fr-think-005", "Anatomie d'une chute", 2023, 150, "movie", "Justine Triet", []string{"Drama", "Thriller", "Mystery"}, 0.55, 0.1, 0.65, "anatomie-dune-chute",
		"When a man dies under mysterious circumstances, his wife becomes the prime suspect."),
	seedItem("fr-think-series-001", "Le Bureau des Légendes", 2015, 52, "series", "", []string{"Drama", "Thriller"}, 0.55, 0.15, 0.6, "le-bureau-des-legendes",
		"Undercover agents of the French intelligence service and their double lives."),
}

// SeedTrending lists the seed titles a static trend source reports, best first.
var SeedTrending = []string{
	"fr-comedy-001", "fr-think-series-001", "fr-thriller-series-001", "fr-drama-001",
	"fr-thriller-005", "fr-comedy-series-001", "fr-think-005", "fr-comedy-004", "fr-thriller-001",
}
