package corpus

// SampleRecords is installed into an empty corpus on first start.
var SampleRecords = []QARecord{
	{
		Question: "Which types of relationships are used in Conceptual Modelling?",
		Answer: "One-to-One Relationship - a relationship that connects single Entities\n" +
			"One-to-Many relationship - a relationship that connects one Entity with several other Entities\n" +
			"Many-to-Many Relationship - a relationship that connects many Entities of one Entity Type to many Entities of the other Entity Type\n" +
			"Generalization Relationship - a relationship that connects several sub-concepts (Entity Types) to one super-concept (Entity Type). Sub-concepts inherit the properties of the super-concept\n" +
			"Part-Whole Relationship - a relationship that connects several Entity Types representing the parts of something to the Entity Type representing this something as a whole. Part-Whole Relationships could Aggregations or Compositions.",
	},
	{
		Question: "What are the modelling elements used in Conceptual Modelling?",
		Answer: "An Entity Type - a container for entities having the same defining properties but with different values\n" +
			"An Entity - an element that corresponds to a real-world object or process\n" +
			"A Relationship - a property that reflects the connection between different Entity Types or Entities\n" +
			"An Attribute - a property of an Entity Type, Entity, or Relationship",
	},
	{
		Question: "What is a conceptual model",
		Answer: "A mapping of implicit domain interpretations (mental structures) – interlinked concepts – into commonly agreed symbols and schemas – term graphs\n" +
			"An explicit description of implicit mental structures that is in a semantic agreement between the stakeholders",
	},
}
