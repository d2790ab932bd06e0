package main

// Discussion topics handed to crewmates each round. The impostor never
// receives one and has to blend in anyway.
var topicList = []string{
	"food",
	"cars",
	"anime",
	"movies",
	"school",
	"trains",
	"shervin",
	"IEEE",
	"the state of vancouver's economy in chinese",
	"clothing",
	"canada",
	"computer parts",
	"games",
	"art",
}
